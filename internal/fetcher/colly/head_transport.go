package collyfetcher

import (
	"io"
	"net/http"
	"strings"

	"github.com/JakeFAU/hnreader/internal/fetcher/partial"
)

// headTransport ends each identity-encoded response body right after the chunk holding
// </head>, so colly stops reading from the network there instead of buffering up to
// MaxBodySize. Compressed bodies pass through and are bounded by MaxBodySize only.
type headTransport struct {
	next      http.RoundTripper
	chunkSize int
	maxChunks int
}

func (t *headTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp == nil || resp.Body == nil {
		return resp, err
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
		return resp, nil
	}
	resp.Body = &headBody{
		body:      resp.Body,
		scanner:   partial.NewScanner(t.maxChunks),
		chunkSize: t.chunkSize,
	}
	resp.ContentLength = -1
	return resp, nil
}

// headBody reads at most one chunk per Read and reports EOF once the scanner is done.
type headBody struct {
	body      io.ReadCloser
	scanner   *partial.Scanner
	chunkSize int
	done      bool
}

func (b *headBody) Read(p []byte) (int, error) {
	if b.done {
		return 0, io.EOF
	}
	if len(p) > b.chunkSize {
		p = p[:b.chunkSize]
	}
	n, err := b.body.Read(p)
	if n > 0 && b.scanner.Feed(p[:n]) {
		b.done = true
		return n, nil
	}
	return n, err
}

func (b *headBody) Close() error {
	return b.body.Close()
}
