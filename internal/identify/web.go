package identify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/portsage/portsage/internal/probe"
	"github.com/portsage/portsage/internal/version"
)

// WebInfo holds findings from HTTP inspection of a port.
type WebInfo struct {
	Server       string   `json:"server,omitempty"`
	PoweredBy    string   `json:"powered_by,omitempty"`
	Title        string   `json:"title,omitempty"`
	Generator    string   `json:"generator,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// InspectWeb fingerprints the web stack behind host:port. It issues a
// HEAD request for headers and a GET for body content; either may fail
// independently, and the result combines whatever succeeded. The error
// return is non-nil only when both requests failed.
func (id *Identifier) InspectWeb(ctx context.Context, host string, port int) (*WebInfo, error) {
	useTLS := port == 443 || port == 8443 || id.catalog.ServiceForPort(port) == "https"
	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(host, strconv.Itoa(port)))

	client := id.webClient()
	defer client.CloseIdleConnections()

	info := &WebInfo{}
	headErr := id.fetchHeaders(ctx, client, url, info)
	bodyErr := id.fetchContent(ctx, client, url, info)

	if headErr != nil && bodyErr != nil {
		return nil, fmt.Errorf("web inspection %s: %w", url, bodyErr)
	}
	return info, nil
}

func (id *Identifier) webClient() *http.Client {
	return &http.Client{
		Timeout: id.timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Transport: &http.Transport{
			// Same fingerprinting read as InspectTLS: record the
			// server's claimed identity without trusting it.
			TLSClientConfig:   &tls.Config{InsecureSkipVerify: true},
			DisableKeepAlives: true,
		},
	}
}

func (id *Identifier) fetchHeaders(ctx context.Context, client *http.Client, url string, info *WebInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		id.log.Debug("head request failed", zap.String("url", url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	info.Server = resp.Header.Get("Server")
	info.PoweredBy = resp.Header.Get("X-Powered-By")
	return nil
}

func (id *Identifier) fetchContent(ctx context.Context, client *http.Client, url string, info *WebInfo) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := client.Do(req)
	if err != nil {
		id.log.Debug("get request failed", zap.String("url", url), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, probe.ContentCap))
	if err != nil && len(body) == 0 {
		return err
	}

	// Headers from the GET fill any gap the HEAD left
	if info.Server == "" {
		info.Server = resp.Header.Get("Server")
	}
	if info.PoweredBy == "" {
		info.PoweredBy = resp.Header.Get("X-Powered-By")
	}

	info.Title, info.Generator = parseHTMLMeta(body)
	info.Technologies = id.catalog.Technologies(body)
	return nil
}

// parseHTMLMeta extracts the document title and the generator meta tag
// from an HTML body.
func parseHTMLMeta(body []byte) (title, generator string) {
	tz := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch tz.Next() {
		case html.ErrorToken:
			return title, generator
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tz.TagName()
			switch string(name) {
			case "title":
				if title == "" && tz.Next() == html.TextToken {
					title = strings.TrimSpace(string(tz.Text()))
				}
			case "meta":
				if !hasAttr {
					continue
				}
				var isGenerator bool
				var content string
				for {
					key, val, more := tz.TagAttr()
					switch string(key) {
					case "name":
						if strings.EqualFold(string(val), "generator") {
							isGenerator = true
						}
					case "content":
						content = string(val)
					}
					if !more {
						break
					}
				}
				if isGenerator && generator == "" {
					generator = content
				}
			}
		}
	}
}
