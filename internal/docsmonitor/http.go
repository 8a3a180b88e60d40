package docsmonitor

import (
	"context"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
)

// detect issues the Layer 1 HEAD probe and compares the response validators
// against the source's last recorded watermark. Any network error, or a
// server that supplies neither validator, is treated as "changed" — the
// conservative fall-through §7 prescribes for transient I/O at this layer.
func (m *Monitor) detect(ctx context.Context, src store.Source) (changed bool, lastModified, etag string) {
	dctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	if err := m.limiter.Wait(dctx, src.BundleURL); err != nil {
		logging.DocsMonitorWarn("detect: rate limiter wait for %s: %v", src.Name, err)
		return true, "", ""
	}

	req, err := retryablehttp.NewRequestWithContext(dctx, http.MethodHead, src.BundleURL, nil)
	if err != nil {
		logging.DocsMonitorError("detect: building request for %s: %v", src.Name, err)
		return true, "", ""
	}

	resp, err := m.client.Do(req)
	if err != nil {
		logging.DocsMonitorWarn("detect: request failed for %s, treating as changed: %v", src.Name, err)
		return true, "", ""
	}
	defer resp.Body.Close()

	lastModified = resp.Header.Get("Last-Modified")
	etag = resp.Header.Get("ETag")

	prior, err := m.store.LatestWatermark(src.Name)
	switch {
	case err != nil:
		return true, lastModified, etag // never checked before
	case lastModified == "" && etag == "":
		return true, lastModified, etag // server provides no validators
	case lastModified == prior.LastModified && etag == prior.ETag:
		return false, lastModified, etag
	default:
		return true, lastModified, etag
	}
}

// identify fetches the full bundle for Layer 2.
func (m *Monitor) identify(ctx context.Context, src store.Source) (string, error) {
	ictx, cancel := context.WithTimeout(ctx, identifyTimeout)
	defer cancel()

	if err := m.limiter.Wait(ictx, src.BundleURL); err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ictx, http.MethodGet, src.BundleURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
