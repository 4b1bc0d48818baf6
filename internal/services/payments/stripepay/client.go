package stripepay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"ticket-marketplace/internal/status"
	"ticket-marketplace/utils"
)

type ClientConfig struct {
	BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
	AccountID string `json:"accountId" mapstructure:"account_id"`
	APIKey    string `json:"apiKey" mapstructure:"api_key"`
	HMACKey   string `json:"hmacKey" mapstructure:"hmac_key"`
}

type httpClient struct {
	// baseURL is the base url of the StripePay backend.
	baseURL string

	// accountID is the merchant account id on the StripePay backend.
	accountID string

	// apiKey is the api key of the StripePay backend.
	apiKey string

	// hmacKey is the hmac key used to sign request bodies.
	hmacKey string

	// accessToken is used to authenticate with the StripePay backend.
	accessToken string

	// mu is used to lock access token.
	mu sync.Mutex

	// toggleTokenRefresher is used to notify token refresher to refresh token.
	toggleTokenRefresher chan struct{}

	// hc is the http client.
	hc *http.Client
}

func newHTTPClient(_ context.Context, c *ClientConfig) *httpClient {
	return &httpClient{
		baseURL:   c.BaseURL,
		accountID: c.AccountID,
		apiKey:    c.APIKey,
		hmacKey:   c.HMACKey,

		// make a buffered channel to avoid blocking.
		toggleTokenRefresher: make(chan struct{}, 1),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// notifyAccessTokenExpired do infinite loop with period of time
// to perform auto renew token from the StripePay backend with
// exponential backOff strategy.
func (c *httpClient) notifyAccessTokenExpired(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	for {
		select {
		case <-ctx.Done():
			ticker.Stop()
			return

		case <-ticker.C:

		case <-c.toggleTokenRefresher:
			log.Println("notifyAccessTokenExpired: toggleTokenRefresher => token refreshed")
		}

		// reconnect with exponential backOff strategy
		backOff := time.Second

	Retry:
		for {
			token, err := c.connect(ctx)
			switch err {
			case nil:
				c.setAccessToken(token)

				break Retry

			default:
				log.Printf("notifyAccessTokenExpired: %v", err)
				select {
				case <-ctx.Done():
					return

				case <-time.After(backOff):
					backOff *= 2
				}
			}
		}
	}
}

// setAccessToken set access token to client.
func (c *httpClient) setAccessToken(accessToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
}

// getAccessToken get access token from client.
func (c *httpClient) getAccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// connect makes http call to perform authentication with the StripePay backend.
func (c *httpClient) connect(ctx context.Context) (string, error) {
	number, err := utils.RandomRequestID()
	if err != nil {
		return "", fmt.Errorf("connectStripePay: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"accountId":%q,"apiKey":%q}`, number, c.accountID, c.apiKey)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/v1/auth/token"), bodyReader)
	if err != nil {
		return "", fmt.Errorf("connectStripePay: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("connectStripePay: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return "", errors.New("connectStripePay: resp.StatusCode: 401 => Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("connectStripePay: resp.StatusCode: %v", resp.StatusCode)
	}

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AccessToken string `json:"accessToken"`
			TokenType   string `json:"tokenType"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return "", fmt.Errorf("connectStripePay: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		return "", fmt.Errorf("connectStripePay: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	accessToken := fmt.Sprintf("%s %s", reply.Data.TokenType, reply.Data.AccessToken)
	return accessToken, nil
}

// authorize charges a card on the StripePay backend.
func (c *httpClient) authorize(ctx context.Context, f *status.ChargeForm) (*status.ChargeResult, error) {
	number, err := utils.RandomRequestID()
	if err != nil {
		return nil, fmt.Errorf("authorizeStripePay: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"accountId":%q,"amount":%s,"currency":%q,"cardNumber":%q,"expiry":%q,"cvv":%q,"holderName":%q,"reference":%q}`,
		number, c.accountID, f.Amount, f.Currency, f.CardNumber, f.Expiry, f.CVV, f.HolderName, f.Reference)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/v1/charges"), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("authorizeStripePay: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("authorizeStripePay: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("authorizeStripePay: resp.StatusCode: 401 => Unauthorized")
	}

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Data    struct {
			ChargeID string `json:"chargeId"`
			Status   string `json:"status"`
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("authorizeStripePay: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		if reply.Status == "DECLINED" {
			return &status.ChargeResult{ChargeID: reply.Data.ChargeID, Status: "declined"}, nil
		}
		return nil, fmt.Errorf("authorizeStripePay: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return &status.ChargeResult{
		ChargeID: reply.Data.ChargeID,
		Status:   reply.Data.Status,
	}, nil
}

// refund reverses a charge on the StripePay backend.
func (c *httpClient) refund(ctx context.Context, chargeID string) error {
	number, err := utils.RandomRequestID()
	if err != nil {
		return fmt.Errorf("refundStripePay: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"chargeId":%q}`, number, chargeID)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/v1/refunds"), bodyReader)
	if err != nil {
		return fmt.Errorf("refundStripePay: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("refundStripePay: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return errors.New("refundStripePay: resp.StatusCode: 401 => Unauthorized")
	}

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return fmt.Errorf("refundStripePay: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		return fmt.Errorf("refundStripePay: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return nil
}

// createSession opens a hosted checkout session on the StripePay backend.
func (c *httpClient) createSession(ctx context.Context, f *status.SessionForm) (*status.SessionState, error) {
	number, err := utils.RandomRequestID()
	if err != nil {
		return nil, fmt.Errorf("createSessionStripePay: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"accountId":%q,"amount":%s,"currency":%q,"reference":%q,"successUrl":%q,"cancelUrl":%q}`,
		number, c.accountID, f.Amount, f.Currency, f.Reference, f.SuccessURL, f.CancelURL)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/v1/checkout/sessions"), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("createSessionStripePay: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("createSessionStripePay: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("createSessionStripePay: resp.StatusCode: 401 => Unauthorized")
	}

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Data    struct {
			sessionPayload
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("createSessionStripePay: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		return nil, fmt.Errorf("createSessionStripePay: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return reply.Data.sessionPayload.ToDomain(), nil
}

// checkSession fetches the state of a checkout session from the StripePay backend.
func (c *httpClient) checkSession(ctx context.Context, sessionID string) (*status.SessionState, error) {
	number, err := utils.RandomRequestID()
	if err != nil {
		return nil, fmt.Errorf("checkSessionStripePay: request id: %v", err)
	}

	body := fmt.Sprintf(`{"requestId":%q,"sessionId":%q}`, number, sessionID)
	bodyReader := bytes.NewReader([]byte(body))

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s%s", _baseURL.String(), "/api/v1/checkout/sessions/check"), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("checkSessionStripePay: http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("SignedHash", Hmac256([]byte(body), []byte(c.hmacKey)))
	req.Header.Set("Authorization", c.getAccessToken())

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checkSessionStripePay: http.Do: %v", err)
	}
	defer resp.Body.Close()

	// toggle token refresher if unauthorized
	if resp.StatusCode == http.StatusUnauthorized {
		c.toggleTokenRefresher <- struct{}{}
		return nil, errors.New("checkSessionStripePay: resp.StatusCode: 401 => Unauthorized")
	}

	var reply struct {
		Message string `json:"message"`
		Status  string `json:"status"`
		Data    struct {
			sessionPayload
		} `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("checkSessionStripePay: json.Decode: %v", err)
	}
	if reply.Status != "OK" {
		if reply.Status == "NOT_FOUND" {
			return nil, status.ErrSessionNotFound
		}
		return nil, fmt.Errorf("checkSessionStripePay: reply.Status: %v, reply.Message: %v", reply.Status, reply.Message)
	}

	return reply.Data.sessionPayload.ToDomain(), nil
}
