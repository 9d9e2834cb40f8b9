package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/localrivet/currentdt/dterr"
	"github.com/localrivet/currentdt/format"
	"github.com/localrivet/currentdt/util/conversion"
)

// Remote defaults.
const (
	DefaultRemoteURL      = "https://worldtimeapi.org/api/timezone/UTC"
	DefaultRemoteTimeout  = 5 * time.Second
	DefaultProbeTimeout   = 2 * time.Second
	DefaultRemotePriority = 2
)

const maxResponseBytes = 1 << 20

// RemoteOptions configures a Remote source. Zero values take the defaults.
type RemoteOptions struct {
	URL          string
	Timeout      time.Duration
	ProbeTimeout time.Duration
	Priority     int
	Client       *http.Client
}

// Remote fetches the instant from an HTTP time service returning JSON.
type Remote struct {
	url          string
	timeout      time.Duration
	probeTimeout time.Duration
	priority     int
	client       *http.Client
}

// NewRemote validates opts and returns a Remote source.
func NewRemote(opts RemoteOptions) (*Remote, error) {
	if opts.URL == "" {
		opts.URL = DefaultRemoteURL
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", opts.URL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: must be an absolute http(s) URL", opts.URL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRemoteTimeout
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Priority <= 0 {
		opts.Priority = DefaultRemotePriority
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	return &Remote{
		url:          opts.URL,
		timeout:      opts.Timeout,
		probeTimeout: opts.ProbeTimeout,
		priority:     opts.Priority,
		client:       opts.Client,
	}, nil
}

// URL returns the endpoint queried by the source.
func (r *Remote) URL() string {
	return r.url
}

// Timeout returns the fetch deadline.
func (r *Remote) Timeout() time.Duration {
	return r.timeout
}

// Name returns "remote".
func (r *Remote) Name() string {
	return RemoteName
}

// Priority returns the configured priority.
func (r *Remote) Priority() int {
	return r.priority
}

// CurrentDateTime issues a GET and extracts the instant from the JSON body.
// The request is cancelled when the timeout expires.
func (r *Remote) CurrentDateTime(ctx context.Context) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return time.Time{}, r.fetchError(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return time.Time{}, r.transportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return time.Time{}, dterr.Provider(RemoteName,
			fmt.Sprintf("Remote provider returned %d: %s", resp.StatusCode, statusText(resp)),
			resp.StatusCode >= 500)
	}

	var body map[string]interface{}
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		if ctx.Err() != nil {
			return time.Time{}, r.transportError(ctx, err)
		}
		return time.Time{}, dterr.Provider(RemoteName,
			"Unable to parse datetime from remote provider response", false).WithCause(err)
	}

	return extract(body)
}

// IsAvailable sends a HEAD request under the probe timeout.
func (r *Remote) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.url, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

func (r *Remote) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return dterr.Provider(RemoteName,
			fmt.Sprintf("Remote provider request timed out after %dms", r.timeout.Milliseconds()), true).WithCause(err)
	}
	return r.fetchError(err)
}

func (r *Remote) fetchError(err error) error {
	return dterr.Provider(RemoteName,
		fmt.Sprintf("Failed to fetch datetime from remote provider: %v", err), true).WithCause(err)
}

func statusText(resp *http.Response) string {
	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

// extract checks the known response shapes in order: datetime,
// utc_datetime, timestamp (seconds), iso.
func extract(body map[string]interface{}) (time.Time, error) {
	for _, key := range []string{"datetime", "utc_datetime", "timestamp", "iso"} {
		raw, ok := body[key]
		if !ok || raw == nil {
			continue
		}
		if key == "timestamp" {
			secs, err := conversion.ToFloat64(raw)
			if err != nil || secs == 0 {
				continue
			}
			if math.IsNaN(secs) || math.IsInf(secs, 0) {
				return time.Time{}, invalidDatetime(fmt.Sprint(raw))
			}
			t := time.UnixMilli(int64(math.Round(secs * 1000))).UTC()
			if !format.ValidInstant(t) {
				return time.Time{}, invalidDatetime(fmt.Sprint(raw))
			}
			return t, nil
		}

		s, ok := raw.(string)
		if !ok || s == "" {
			continue
		}
		t, err := ParseDateTime(s)
		if err != nil {
			return time.Time{}, invalidDatetime(s)
		}
		return t, nil
	}
	return time.Time{}, dterr.Provider(RemoteName, "Unable to parse datetime from remote provider response", false)
}

func invalidDatetime(s string) error {
	return dterr.Provider(RemoteName, "Invalid datetime received from remote provider: "+s, false)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseDateTime parses the date-time strings time services commonly emit.
// Strings without an offset are read as UTC.
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if !format.ValidInstant(t) {
				break
			}
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
