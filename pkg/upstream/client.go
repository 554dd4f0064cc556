package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/sirupsen/logrus"
)

const (
	ActionGetClientsDomains       = "GetClientsDomains"
	ActionGetClients              = "GetClients"
	ActionDomainGetNameservers    = "DomainGetNameservers"
	ActionDomainUpdateNameservers = "DomainUpdateNameservers"
	ActionGetStats                = "GetStats"
	ActionGetServers              = "GetServers"
	ActionGetHealthStatus         = "GetHealthStatus"

	defaultTimeout = 30 * time.Second
)

// Credentials identify one tenant's upstream account. Passed explicitly into
// every call; the gateway itself holds no tenant state.
type Credentials struct {
	Tenant             string
	Endpoint           string
	Identifier         string
	Secret             string
	InsecureSkipVerify bool
}

// CacheKey is the credential-identity component of cache keys, so entries
// stored under old credentials die with them.
func (c Credentials) CacheKey() string {
	return c.Endpoint + "|" + c.Identifier
}

// Gateway issues individual remote calls against the upstream billing API and
// normalizes responses and transport failures into uniform shapes. No retries
// happen at this layer; retry policy belongs to callers.
type Gateway interface {
	Call(ctx context.Context, creds Credentials, action string, params map[string]string) (json.RawMessage, error)
	GetClientsDomains(ctx context.Context, creds Credentials, limitNum, limitStart int, clientID string) (model.PageResult, error)
	GetClients(ctx context.Context, creds Credentials, limitNum int) ([]Client, error)
	GetNameservers(ctx context.Context, creds Credentials, domainID string) (*model.NameserverSet, error)
	UpdateNameservers(ctx context.Context, creds Credentials, domain, ns1, ns2 string) (string, error)
	GetStats(ctx context.Context, creds Credentials) (*Stats, error)
	GetServers(ctx context.Context, creds Credentials) (json.RawMessage, error)
	TestConnection(ctx context.Context, creds Credentials) error
}

type client struct {
	verified *http.Client
	insecure *http.Client
	limiter  *Limiter
	log      *logrus.Entry
}

// NewGateway builds a gateway pacing every call through limiter. A nil
// limiter disables pacing (used by one-shot CLI commands and tests).
func NewGateway(limiter *Limiter, log *logrus.Entry) Gateway {
	insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
	insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &client{
		verified: &http.Client{Timeout: defaultTimeout},
		insecure: &http.Client{Timeout: defaultTimeout, Transport: insecureTransport},
		limiter:  limiter,
		log:      log,
	}
}

func (c *client) Call(ctx context.Context, creds Credentials, action string, params map[string]string) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, creds.Tenant); err != nil {
			return nil, err
		}
	}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	form.Set("action", action)
	form.Set("identifier", creds.Identifier)
	form.Set("secret", creds.Secret)
	form.Set("responsetype", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, creds.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Action: action, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := c.verified
	if creds.InsecureSkipVerify {
		httpClient = c.insecure
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		// HTTPCode stays 0: the upstream never responded, which callers
		// report differently from a rejection.
		return nil, &Error{
			Action:  action,
			Message: err.Error(),
			Timeout: isTimeout(err),
		}
	}
	defer resp.Body.Close()

	var body json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &Error{
			Action:   action,
			HTTPCode: resp.StatusCode,
			Message:  fmt.Sprintf("invalid response body: %v", err),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{
			Action:   action,
			HTTPCode: resp.StatusCode,
			Message:  fmt.Sprintf("invalid response body: %v", err),
		}
	}

	if env.Result != "success" {
		msg := env.Message
		if msg == "" {
			msg = "Unknown error"
		}
		return nil, &Error{
			Action:   action,
			HTTPCode: resp.StatusCode,
			Message:  msg,
		}
	}

	c.log.WithFields(logrus.Fields{
		"tenant":   creds.Tenant,
		"action":   action,
		"duration": time.Since(start),
	}).Debug("upstream call")

	return body, nil
}

func (c *client) GetClientsDomains(ctx context.Context, creds Credentials, limitNum, limitStart int, clientID string) (model.PageResult, error) {
	params := map[string]string{
		"limitnum": strconv.Itoa(limitNum),
	}
	if limitStart > 0 {
		params["limitstart"] = strconv.Itoa(limitStart)
	}
	if clientID != "" {
		params["clientid"] = clientID
	}

	raw, err := c.Call(ctx, creds, ActionGetClientsDomains, params)
	if err != nil {
		return model.PageResult{}, err
	}

	var body domainsBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return model.PageResult{}, &Error{Action: ActionGetClientsDomains, HTTPCode: http.StatusOK, Message: err.Error()}
	}

	page := model.PageResult{
		TotalResults: body.TotalResults.Int(),
		Offset:       limitStart,
		Limit:        limitNum,
	}
	for _, w := range body.Domains.Domain {
		page.Domains = append(page.Domains, w.normalize())
	}
	return page, nil
}

func (c *client) GetClients(ctx context.Context, creds Credentials, limitNum int) ([]Client, error) {
	raw, err := c.Call(ctx, creds, ActionGetClients, map[string]string{
		"limitnum": strconv.Itoa(limitNum),
	})
	if err != nil {
		return nil, err
	}

	var body clientsBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &Error{Action: ActionGetClients, HTTPCode: http.StatusOK, Message: err.Error()}
	}

	clients := make([]Client, 0, len(body.Clients.Client))
	for _, w := range body.Clients.Client {
		clients = append(clients, w.normalize())
	}
	return clients, nil
}

func (c *client) GetNameservers(ctx context.Context, creds Credentials, domainID string) (*model.NameserverSet, error) {
	raw, err := c.Call(ctx, creds, ActionDomainGetNameservers, map[string]string{
		"domainid": domainID,
	})
	if err != nil {
		return nil, err
	}

	var body nameserversBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, &Error{Action: ActionDomainGetNameservers, HTTPCode: http.StatusOK, Message: err.Error()}
	}

	return &model.NameserverSet{
		DomainExternalID: domainID,
		NS1:              body.NS1,
		NS2:              body.NS2,
		NS3:              body.NS3,
		NS4:              body.NS4,
		NS5:              body.NS5,
	}, nil
}

func (c *client) UpdateNameservers(ctx context.Context, creds Credentials, domain, ns1, ns2 string) (string, error) {
	raw, err := c.Call(ctx, creds, ActionDomainUpdateNameservers, map[string]string{
		"domain": domain,
		"ns1":    ns1,
		"ns2":    ns2,
	})
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", &Error{Action: ActionDomainUpdateNameservers, HTTPCode: http.StatusOK, Message: err.Error()}
	}
	if env.Message == "" {
		return "Nameservers updated successfully", nil
	}
	return env.Message, nil
}

func (c *client) GetStats(ctx context.Context, creds Credentials) (*Stats, error) {
	raw, err := c.Call(ctx, creds, ActionGetStats, nil)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	if err := json.Unmarshal(raw, stats); err != nil {
		return nil, &Error{Action: ActionGetStats, HTTPCode: http.StatusOK, Message: err.Error()}
	}
	return stats, nil
}

func (c *client) GetServers(ctx context.Context, creds Credentials) (json.RawMessage, error) {
	return c.Call(ctx, creds, ActionGetServers, nil)
}

func (c *client) TestConnection(ctx context.Context, creds Credentials) error {
	_, err := c.Call(ctx, creds, ActionGetHealthStatus, map[string]string{
		"fetchStatus": "true",
	})
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
