// Package session holds the per-connection security state: the secure
// channel (channel id, token id, sequence numbers) and the logical session
// bound to it.
package session

import (
	"fmt"
	"sync"
	"time"

	errs "github.com/alxayo/opcua-server/internal/errors"
	"github.com/alxayo/opcua-server/internal/ua/status"
)

// SecureChannel tracks one TCP-level channel: its id, the current security
// token, and the send/receive sequence counters. All methods are safe for
// concurrent use.
type SecureChannel struct {
	mu        sync.Mutex
	id        uint32
	tokenID   uint32
	createdAt time.Time
	lifetime  time.Duration

	sendSeq    uint32
	recvSeq    uint32
	haveRecv   bool
}

// NewSecureChannel opens a channel with the given id and an initial token.
func NewSecureChannel(id uint32, lifetime time.Duration, now time.Time) *SecureChannel {
	return &SecureChannel{id: id, tokenID: 1, createdAt: now, lifetime: lifetime}
}

// ID returns the channel id.
func (c *SecureChannel) ID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// TokenID returns the current security token id.
func (c *SecureChannel) TokenID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenID
}

// CreatedAt returns when the current token was issued.
func (c *SecureChannel) CreatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createdAt
}

// Renew issues a fresh token, invalidating the previous one.
func (c *SecureChannel) Renew(now time.Time) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenID++
	c.createdAt = now
	return c.tokenID
}

// NextSendSequence allocates the next outbound sequence number.
func (c *SecureChannel) NextSendSequence() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendSeq++
	return c.sendSeq
}

// VerifySecurity checks an inbound chunk's channel and token ids against the
// channel state.
func (c *SecureChannel) VerifySecurity(channelID, tokenID uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if channelID != c.id {
		return errs.NewSecurityError("channel.verify", status.BadSecureChannelIdInvalid,
			fmt.Errorf("chunk channel id %d, channel is %d", channelID, c.id))
	}
	if tokenID != c.tokenID {
		return errs.NewSecurityError("channel.verify", status.BadSecurityTokenRejected,
			fmt.Errorf("chunk token id %d, current token is %d", tokenID, c.tokenID))
	}
	return nil
}

// VerifyReceiveSequence enforces strictly consecutive inbound sequence
// numbers. The first number observed on the channel is accepted as the
// base; every later chunk must follow it by exactly one. A gap or replay
// fails with BadSequenceNumberInvalid.
func (c *SecureChannel) VerifyReceiveSequence(seq uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.haveRecv {
		c.recvSeq = seq
		c.haveRecv = true
		return nil
	}
	if seq != c.recvSeq+1 {
		return errs.NewSecurityError("channel.verify_sequence", status.BadSequenceNumberInvalid,
			fmt.Errorf("sequence number %d after %d", seq, c.recvSeq))
	}
	c.recvSeq = seq
	return nil
}
