package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"waflow/internal/entities"
	"waflow/internal/interfaces"
	"waflow/internal/logging"
)

// MessageGateway is the outbound side of the engine: it resolves account
// credentials, throttles per recipient, retries delivery with linear
// backoff, and persists successful sends to the transcript.
type MessageGateway struct {
	accounts interfaces.AccountStore
	meta     *MetaClient
	messages interfaces.MessageLog
	limiter  *RecipientLimiter
	retries  int
	delay    time.Duration
	log      *logging.Logger
}

func NewMessageGateway(accounts interfaces.AccountStore, meta *MetaClient, messages interfaces.MessageLog, limiter *RecipientLimiter, retries int, delay time.Duration, log *logging.Logger) *MessageGateway {
	if retries < 1 {
		retries = 1
	}
	return &MessageGateway{
		accounts: accounts,
		meta:     meta,
		messages: messages,
		limiter:  limiter,
		retries:  retries,
		delay:    delay,
		log:      log,
	}
}

// Send delivers one payload, blocking the caller until delivery succeeds or
// retries are exhausted. Retry backoff grows linearly with the attempt.
func (g *MessageGateway) Send(ctx context.Context, accountID string, payload entities.Payload) (string, error) {
	account, err := g.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("resolve account: %w", err)
	}
	if account == nil {
		return "", fmt.Errorf("whatsapp account %s not found", accountID)
	}

	if err := g.limiter.Wait(ctx, payload.To); err != nil {
		return "", fmt.Errorf("throttle send: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= g.retries; attempt++ {
		providerID, err := g.meta.SendMessage(ctx, account.PhoneNumberID, account.AccessToken, payload)
		if err == nil {
			if payload.ConversationID != "" {
				if saveErr := g.messages.SaveOutbound(ctx, payload.ConversationID, account.TenantID, providerID, payload); saveErr != nil {
					g.log.Error("failed to persist outbound message", "error", saveErr, "conversation_id", payload.ConversationID)
				}
			}
			return providerID, nil
		}
		lastErr = err
		g.log.Warn("send attempt failed", "attempt", attempt, "to", payload.To, "error", err)
		if attempt < g.retries {
			select {
			case <-time.After(g.delay * time.Duration(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", fmt.Errorf("send to %s failed after %d attempts: %w", payload.To, g.retries, lastErr)
}

// MarkAsRead acknowledges an inbound message to the provider.
func (g *MessageGateway) MarkAsRead(ctx context.Context, accountID, messageID string) error {
	account, err := g.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("resolve account: %w", err)
	}
	if account == nil {
		return fmt.Errorf("whatsapp account %s not found", accountID)
	}
	return g.meta.MarkAsRead(ctx, account.PhoneNumberID, account.AccessToken, messageID)
}

// RecipientLimiter throttles outbound sends per recipient address so one
// misconfigured flow cannot flood a user. Idle limiters are dropped
// periodically.
type RecipientLimiter struct {
	mu       sync.Mutex
	limiters map[string]*recipientEntry
	rate     rate.Limit
	burst    int
}

type recipientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRecipientLimiter(perSecond float64, burst int) *RecipientLimiter {
	rl := &RecipientLimiter{
		limiters: make(map[string]*recipientEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
	go rl.cleanup()
	return rl
}

// Wait blocks until a send to the recipient is allowed or ctx is done.
func (rl *RecipientLimiter) Wait(ctx context.Context, recipient string) error {
	rl.mu.Lock()
	entry, ok := rl.limiters[recipient]
	if !ok {
		entry = &recipientEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[recipient] = entry
	}
	entry.lastSeen = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Wait(ctx)
}

func (rl *RecipientLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for recipient, entry := range rl.limiters {
			if now.Sub(entry.lastSeen) > 10*time.Minute {
				delete(rl.limiters, recipient)
			}
		}
		rl.mu.Unlock()
	}
}
