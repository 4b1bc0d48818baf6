package stripepay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	pubnub "github.com/pubnub/go/v7"
	"github.com/shopspring/decimal"

	"ticket-marketplace/internal/status"
)

type (
	Config struct {
		BaseURL   string `json:"baseUrl" mapstructure:"base_url"`
		AccountID string `json:"accountId" mapstructure:"account_id"`
		APIKey    string `json:"apiKey" mapstructure:"api_key"`
		HMACKey   string `json:"hmacKey" mapstructure:"hmac_key"`

		PNSubKey    string `json:"pn_subkey" mapstructure:"pn_subkey"`
		PNSubSecret string `json:"pn_subsecret" mapstructure:"pn_subsecret"`
		PNUUID      string `json:"pn_uuid" mapstructure:"pn_uuid"`
		PNChannel   string `json:"pn_channel" mapstructure:"pn_channel"`
		PNCipherKey string `json:"pn_cipherKey" mapstructure:"pn_cipherkey"`
	}

	Client struct {
		AccountID string

		pnSubKey    string
		pnSubSecret string
		pnUUID      string
		pnChannels  []string
		pnCipherKey string

		sub *subscribe

		client *httpClient
	}
)

type (
	// txnPayload is the transaction notification pushed over PubNub
	// when a checkout session settles.
	txnPayload struct {
		SessionID string          `json:"sessionId"`
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
		Payer     string          `json:"payer"`
		CreatedAt string          `json:"createdAt"`
	}

	sessionPayload struct {
		SessionID     string          `json:"sessionId"`
		CheckoutURL   string          `json:"checkoutUrl"`
		Status        string          `json:"status"`
		PaymentStatus string          `json:"paymentStatus"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
	}
)

// New returns a new StripePay instance.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	client := newHTTPClient(ctx, &ClientConfig{
		BaseURL:   cfg.BaseURL,
		AccountID: cfg.AccountID,
		APIKey:    cfg.APIKey,
		HMACKey:   cfg.HMACKey,
	})

	// Connect to StripePay backend. Get access token.
	token, err := client.connect(ctx)
	if err != nil {
		return nil, err
	}
	client.setAccessToken(token)

	// Notify access token expired.
	go client.notifyAccessTokenExpired(ctx)

	s := &Client{
		AccountID: cfg.AccountID,

		pnSubKey:    cfg.PNSubKey,
		pnSubSecret: cfg.PNSubSecret,
		pnUUID:      cfg.PNUUID,
		pnChannels:  []string{cfg.PNChannel},
		pnCipherKey: cfg.PNCipherKey,

		client: client,
	}

	// Set StripePay's PubNub config.
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(s.pnUUID))
	pnCfg.SubscribeKey = s.pnSubKey
	pnCfg.CipherKey = s.pnCipherKey
	pnCfg.SecretKey = s.pnSubSecret

	// Subscribe to StripePay's PubNub channel.
	newSub, err := s.newSubscription(ctx, pnCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to StripePay's PubNub channel: %v", err)
	}

	// Add listener to StripePay's PubNub.
	newSub.pn.AddListener(newSub.lis)
	s.sub = newSub

	return s, nil
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *status.Transaction
}

func (s *Client) newSubscription(ctx context.Context, pnCfg *pubnub.Config) (*subscribe, error) {
	sub := &subscribe{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
	}

	go sub.processSubscription(ctx)

	return sub, nil
}

func (s *subscribe) processSubscription(ctx context.Context) error {
	listener := s.lis
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to pubnub")

			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to pubnub")

			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from pubnub")

			case pubnub.PNAccessDeniedCategory:
				log.Println("access denied connect to pubnub")

			case pubnub.PNTimeoutCategory:
				log.Println("timeout connect to pubnub")

			default:
				log.Println("pubnub status category:", st.Category)
			}

		case message := <-listener.Message:
			log.Println("message received pubnub: ", message.Message)

			var p txnPayload
			dec := json.NewDecoder(strings.NewReader(message.Message.(string)))
			if err := dec.Decode(&p); err != nil {
				log.Println(err)
				continue
			}

			tran, err := p.ToDomain()
			if err != nil {
				log.Println(err)
				continue
			}
			if s.ch != nil {
				s.ch <- tran
			}

		case <-ctx.Done():
			log.Println("close subscribe")
			return nil
		}
	}
}

func (p *txnPayload) ToDomain() (*status.Transaction, error) {
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", p.CreatedAt, time.Local)
	if err != nil {
		return nil, err
	}

	return &status.Transaction{
		SessionID: p.SessionID,
		Reference: p.Reference,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Payer:     p.Payer,
		CreatedAt: ts,
	}, nil
}

func (p *sessionPayload) ToDomain() *status.SessionState {
	return &status.SessionState{
		SessionID:     p.SessionID,
		CheckoutURL:   p.CheckoutURL,
		Status:        p.Status,
		PaymentStatus: p.PaymentStatus,
		Amount:        p.Amount,
		Currency:      p.Currency,
	}
}

// Authorize charges a card.
func (s *Client) Authorize(ctx context.Context, form *status.ChargeForm) (*status.ChargeResult, error) {
	return s.client.authorize(ctx, form)
}

// Refund reverses a previously authorized charge.
func (s *Client) Refund(ctx context.Context, chargeID string) error {
	return s.client.refund(ctx, chargeID)
}

// CreateSession opens a hosted checkout session.
func (s *Client) CreateSession(ctx context.Context, form *status.SessionForm) (*status.SessionState, error) {
	sess, err := s.client.createSession(ctx, form)
	if err != nil {
		return nil, err
	}

	// Listen for settlement notifications on the session's channel.
	s.addChannel(ctx, sess.SessionID)

	return sess, nil
}

// CheckSession fetches the current state of a checkout session.
func (s *Client) CheckSession(ctx context.Context, sessionID string) (*status.SessionState, error) {
	return s.client.checkSession(ctx, sessionID)
}

func (s *Client) addChannel(_ context.Context, sessionID string) {
	channel := fmt.Sprintf("%s_%s", s.AccountID, sessionID)

	// Get last 2 minutes timetoken.
	tt := time.Now().Add(time.Duration(-2*time.Minute)).Unix() * 10000

	s.sub.pn.Subscribe().Channels([]string{channel}).Timetoken(tt).Execute()
}

func (s *Client) Unsubscribe(ctx context.Context, sessionID string) {
	s.sub.pn.Unsubscribe().Channels([]string{fmt.Sprintf("%s_%s", s.AccountID, sessionID)}).Execute()
}

// SetTranChannel sets the channel for receiving transaction notifications.
func (s *Client) SetTranChannel(ch chan *status.Transaction) {
	s.sub.ch = ch
}

// Close unsubscribes from all PubNub channels.
func (s *Client) Close(_ context.Context) error {
	s.sub.pn.UnsubscribeAll()
	return nil
}
