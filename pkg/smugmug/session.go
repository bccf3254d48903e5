package smugmug

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"

	errs "smdl/pkg/errors"
	"smdl/pkg/logger"
)

var (
	rootNodeIDPattern = regexp.MustCompile(`"rootNodeId":"(\w+)"`)
	csrfTokenPattern  = regexp.MustCompile(`"csrfToken":"(\w+)"`)
)

// maxPageSize bounds how much of an HTML page is read into memory
const maxPageSize = 64 << 20

// Credentials selects how a session authenticates. Both fields empty means
// public access only; when both are set the password wins.
type Credentials struct {
	Password     string
	SessionToken string
}

// Mode names the authentication mode for logs
func (c Credentials) Mode() string {
	switch {
	case c.Password != "":
		return "password"
	case c.SessionToken != "":
		return "session"
	default:
		return "anonymous"
	}
}

// SessionConfig configures a Session
type SessionConfig struct {
	Endpoints Endpoints
	UserAgent string
	// Transport overrides the HTTP transport; nil uses http.DefaultTransport
	Transport http.RoundTripper
}

// Session owns the cookie jar and default headers used by every request
type Session struct {
	httpClient *http.Client
	jar        http.CookieJar
	endpoints  Endpoints
	headers    map[string]string
	logger     logger.Logger
}

// NewSession creates an unauthenticated session
func NewSession(cfg SessionConfig, log logger.Logger) (*Session, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if cfg.Endpoints.APIBaseURL == "" {
		cfg.Endpoints.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.Endpoints.AccountURL == "" {
		cfg.Endpoints.AccountURL = DefaultAccountURL
	}

	headers := map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
	}
	if cfg.UserAgent != "" {
		headers["User-Agent"] = cfg.UserAgent
	}

	return &Session{
		httpClient: &http.Client{
			Jar:       jar,
			Transport: cfg.Transport,
		},
		jar:       jar,
		endpoints: cfg.Endpoints,
		headers:   headers,
		logger:    logger.OrDefault(log).WithField("component", "session"),
	}, nil
}

// Endpoints returns the hosts this session talks to
func (s *Session) Endpoints() Endpoints {
	return s.endpoints
}

// Authenticate establishes the session for username. It must complete
// before any API fetch. A returned error is an auth error; callers may
// continue with public access.
func (s *Session) Authenticate(ctx context.Context, username string, creds Credentials) error {
	log := s.logger.WithFields(map[string]interface{}{
		"username": username,
		"mode":     creds.Mode(),
	})

	switch {
	case creds.Password != "":
		if err := s.login(ctx, username, creds.Password); err != nil {
			return err
		}
		log.Info("Logged in")
	case creds.SessionToken != "":
		if err := s.setSessionToken(username, creds.SessionToken); err != nil {
			return err
		}
		log.Info("Using session token")
	default:
		log.Debug("No credentials, public access only")
	}
	return nil
}

// login performs the landing-page token scrape and the rpc.node.auth POST
func (s *Session) login(ctx context.Context, username, password string) error {
	home := s.endpoints.AccountHome(username)

	page, err := s.fetchPage(ctx, home)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, err, "load account page").WithPath(home)
	}

	// Missing tokens are sent empty; the server decides.
	nodeID := firstMatch(rootNodeIDPattern, page)
	csrfToken := firstMatch(csrfTokenPattern, page)
	if nodeID == "" || csrfToken == "" {
		s.logger.WarnWithFields("Login tokens not found on account page", map[string]interface{}{
			"root_node_id_found": nodeID != "",
			"csrf_token_found":   csrfToken != "",
		})
	}

	form := url.Values{
		"method":   {"rpc.node.auth"},
		"Remember": {"0"},
		"Password": {password},
		"NodeID":   {nodeID},
		"_token":   {csrfToken},
	}

	authURL := s.endpoints.AuthService(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, err, "build login request").WithPath(authURL)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", home)

	resp, err := s.Do(req)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeAuth, err, "login request failed").WithPath(authURL)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if !errs.IsSuccessStatus(resp.StatusCode) {
		return errs.New(errs.ErrorTypeAuth, "login rejected").WithCode(resp.StatusCode).WithPath(authURL)
	}

	// rpc.node.auth answers {"stat":"ok"} or {"stat":"fail","message":...}
	var result struct {
		Stat    string `json:"stat"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &result) == nil && result.Stat == "fail" {
		msg := result.Message
		if msg == "" {
			msg = "login rejected"
		}
		return errs.New(errs.ErrorTypeAuth, "%s", msg).WithPath(authURL)
	}
	return nil
}

// setSessionToken installs the SMSESS cookie for the API and account hosts
func (s *Session) setSessionToken(username, token string) error {
	targets := []string{s.endpoints.APIBaseURL, s.endpoints.AccountHome(username)}
	for _, raw := range targets {
		u, err := url.Parse(raw)
		if err != nil {
			return errs.Wrap(errs.ErrorTypeAuth, err, "invalid endpoint").WithPath(raw)
		}
		cookie := &http.Cookie{
			Name:     SessionCookieName,
			Value:    token,
			Path:     "/",
			Secure:   u.Scheme == "https",
			HttpOnly: true,
		}
		// A domain cookie also reaches the media hosts (photos.smugmug.com)
		if domain := registrableDomain(u.Hostname()); domain != "" {
			cookie.Domain = domain
		}
		s.jar.SetCookies(u, []*http.Cookie{cookie})
	}
	return nil
}

// Cookies returns the cookies the session would send to rawURL
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}

// Do sends req with the session's cookies and default headers. Connection
// level failures are returned as transport errors; the caller inspects the
// status code.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	for key, value := range s.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.WithError(err).DebugWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "%s request failed", req.Method).WithPath(req.URL.String())
	}

	logger.LogRequest(s.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// Get issues a GET request for rawURL
func (s *Session) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "build request").WithPath(rawURL)
	}
	return s.Do(req)
}

// Open issues a GET and returns the body of a 2xx response for streaming.
// The second value is the declared content length, or -1.
func (s *Session) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	resp, err := s.Get(ctx, rawURL)
	if err != nil {
		return nil, 0, err
	}
	if !errs.IsSuccessStatus(resp.StatusCode) {
		drainAndClose(resp.Body)
		return nil, 0, errs.New(errs.ErrorTypeTransport, "unexpected status").
			WithCode(resp.StatusCode).WithPath(rawURL)
	}
	return resp.Body, resp.ContentLength, nil
}

// fetchPage GETs a page and returns its body when the status is 2xx
func (s *Session) fetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, err := s.Open(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxPageSize))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeTransport, err, "read response body").WithPath(rawURL)
	}
	return data, nil
}

func firstMatch(re *regexp.Regexp, data []byte) string {
	if m := re.FindSubmatch(data); len(m) > 1 {
		return string(m[1])
	}
	return ""
}

// registrableDomain returns the eTLD+1 of host, or "" for IPs and
// single-label hosts such as localhost.
func registrableDomain(host string) string {
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
