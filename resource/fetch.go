package resource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/klauspost/compress/gzip"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

const DefaultMaxSize = 32 << 20

// Fetcher retrieves the raw content of a resource.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type FetchFunc func(context.Context, string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// Mux dispatches a fetch to the Fetcher registered for the scheme of the
// url. Paths without scheme use the "file" entry.
type Mux map[string]Fetcher

func DefaultMux(retry int, timeout time.Duration) Mux {
	web := HTTP(retry, timeout)
	return Mux{
		"file":  File(),
		"http":  web,
		"https": web,
	}
}

func (m Mux) Fetch(ctx context.Context, url string) ([]byte, error) {
	s := scheme(url)
	f, ok := m[s]
	if !ok {
		return nil, fmt.Errorf("%s: %w", s, ErrUnsupported)
	}
	return f.Fetch(ctx, url)
}

type fileFetcher struct{}

func File() Fetcher {
	return fileFetcher{}
}

func (fileFetcher) Fetch(_ context.Context, str string) ([]byte, error) {
	file := str
	if u, err := url.Parse(str); err == nil && u.Scheme == "file" {
		file = u.Path
	}
	r, err := os.Open(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", str, ErrNotFound)
		}
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}

type httpFetcher struct {
	client *retryablehttp.Client
}

func HTTP(retry int, timeout time.Duration) Fetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = retry
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return httpFetcher{
		client: client,
	}
}

func (h httpFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml, text/xml, application/xslt+xml, */*;q=0.1")
	req.Header.Set("Accept-Encoding", "gzip")
	res, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case res.StatusCode >= http.StatusBadRequest:
		return nil, fmt.Errorf("%s: unexpected status %s", url, res.Status)
	}
	if strings.EqualFold(res.Header.Get("Content-Encoding"), "gzip") {
		z, err := gzip.NewReader(res.Body)
		if err != nil {
			return nil, err
		}
		defer z.Close()
		return readAll(z)
	}
	return readAll(res.Body)
}

// Memory serves resources from a map, mostly for tests.
type Memory map[string]string

func (m Memory) Fetch(_ context.Context, url string) ([]byte, error) {
	str, ok := m[url]
	if !ok {
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	return []byte(str), nil
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, DefaultMaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > DefaultMaxSize {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Decode turns the raw content of a resource into utf-8 xml. Compressed
// content is inflated, binary content is rejected and legacy encodings are
// converted.
func Decode(url string, data []byte) ([]byte, error) {
	mtype := mimetype.Detect(data)
	if mtype.Is("application/gzip") || extension(url) == ".gz" {
		z, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer z.Close()
		if data, err = readAll(z); err != nil {
			return nil, err
		}
		mtype = mimetype.Detect(data)
	}
	if !isText(mtype) {
		return nil, fmt.Errorf("%s: %s: %w", url, mtype.String(), ErrMediaType)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data, nil
	}
	label := declaredEncoding(data)
	if label == "" {
		label = detectCharset(data)
	}
	r, err := charset.NewReaderLabel(label, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", url, label, err)
	}
	return readAll(r)
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") || m.Is("text/xml") || m.Is("application/xml") {
			return true
		}
	}
	return false
}

var encodingAttr = regexp.MustCompile(`^<\?xml[^>]*\sencoding\s*=\s*["']([A-Za-z][A-Za-z0-9._-]*)["']`)

func declaredEncoding(data []byte) string {
	m := encodingAttr.FindSubmatch(data)
	if m == nil {
		return ""
	}
	return strings.ToLower(string(m[1]))
}

func detectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	res, err := detector.DetectBest(data)
	if err != nil || res == nil {
		return "utf-8"
	}
	return strings.ToLower(res.Charset)
}
