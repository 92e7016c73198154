// internal/llmclient/image.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// maxScreenshotBytes bounds how much of a screenshot is pulled into memory.
const maxScreenshotBytes = 20 << 20

var errNonPublicAddress = errors.New("screenshot host is not a public address")

// sharedAddressSpace is the carrier-grade NAT range (RFC 6598).
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// newImageClient returns the client used to download screenshots. Unless allowPrivate is
// set, every connection it opens is checked after name resolution, which covers redirects
// and hosts whose DNS points inward.
func newImageClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	if !allowPrivate {
		dialer.Control = rejectNonPublic
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	if !allowPrivate {
		// A proxy would make the dial target the proxy rather than the screenshot host.
		transport.Proxy = nil
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

func rejectNonPublic(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("unexpected dial address %q: %w", address, err)
	}
	if !isPublicAddr(ip) {
		return fmt.Errorf("%w: %s", errNonPublicAddress, ip)
	}
	return nil
}

// isPublicAddr rejects loopback, private, link-local, multicast and unspecified addresses.
func isPublicAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate() && !sharedAddressSpace.Contains(ip)
}

// fetchImage downloads the screenshot at url so it can be sent inline to providers
// that do not accept arbitrary image URLs. It returns the bytes and their MIME type.
func fetchImage(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("invalid screenshot url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, "", fmt.Errorf("screenshot url scheme %q is not http or https", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create screenshot request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch screenshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("screenshot fetch returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxScreenshotBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read screenshot: %w", err)
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("screenshot is empty")
	}
	if len(data) > maxScreenshotBytes {
		return nil, "", fmt.Errorf("screenshot exceeds %d bytes", maxScreenshotBytes)
	}

	return data, imageMIME(resp.Header.Get("Content-Type"), data), nil
}

// imageMIME prefers a declared image type and otherwise sniffs the bytes.
func imageMIME(declared string, data []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && strings.HasPrefix(mt, "image/") {
		return mt
	}
	sniffed := http.DetectContentType(data)
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return "image/png"
}
