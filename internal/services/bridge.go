package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"spin-miniapp-backend/internal/models"
)

// JSONConn is the part of *websocket.Conn the bridge needs.
type JSONConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

const (
	MessageRequest  = "request"
	MessageResponse = "response"
	MessageEvent    = "event"
	MessageNotify   = "notify"
	MessagePing     = "PING"
	MessagePong     = "PONG"
)

type bridgeRequest struct {
	Type   string        `json:"type"`
	ID     uint64        `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params,omitempty"`
}

type bridgeNotification struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type bridgeInbound struct {
	Type   string          `json:"type"`
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProviderError  `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type bridgeReply struct {
	result json.RawMessage
	err    error
}

// WalletBridge is a Provider backed by the viewer's browser wallet. Requests
// are pushed to the page over the connection and answered asynchronously;
// the page also forwards wallet notifications.
type WalletBridge struct {
	conn   JSONConn
	logger *zap.Logger

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan bridgeReply
	subs    map[int]chan<- ProviderEvent
	nextSub int
	closed  bool
	done    chan struct{}
}

func NewWalletBridge(conn JSONConn, logger *zap.Logger) *WalletBridge {
	return &WalletBridge{
		conn:    conn,
		logger:  logger,
		pending: make(map[uint64]chan bridgeReply),
		subs:    make(map[int]chan<- ProviderEvent),
		done:    make(chan struct{}),
	}
}

// Run reads messages until the connection fails. Pending requests are
// failed with ErrBridgeClosed on return.
func (b *WalletBridge) Run() error {
	defer b.shutdown()

	for {
		var msg bridgeInbound
		if err := b.conn.ReadJSON(&msg); err != nil {
			return err
		}
		b.dispatch(&msg)
	}
}

// Close drops the connection; Run returns shortly after.
func (b *WalletBridge) Close() error {
	return b.conn.Close()
}

func (b *WalletBridge) Done() <-chan struct{} {
	return b.done
}

func (b *WalletBridge) shutdown() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.pending = make(map[uint64]chan bridgeReply)
	close(b.done)
	b.mu.Unlock()

	b.conn.Close()
}

func (b *WalletBridge) dispatch(msg *bridgeInbound) {
	switch msg.Type {
	case MessageResponse:
		b.mu.Lock()
		ch, ok := b.pending[msg.ID]
		delete(b.pending, msg.ID)
		b.mu.Unlock()

		if !ok {
			b.logger.Debug("response for unknown request", zap.Uint64("id", msg.ID))
			return
		}
		reply := bridgeReply{result: msg.Result}
		if msg.Error != nil {
			reply.err = msg.Error
		}
		ch <- reply

	case MessageEvent:
		ev, err := parseProviderEvent(msg)
		if err != nil {
			b.logger.Warn("malformed wallet event", zap.String("event", msg.Event), zap.Error(err))
			return
		}
		b.publish(ev)

	case MessagePing:
		b.write(bridgeNotification{
			Type:  MessagePong,
			Event: "pong",
			Data:  map[string]int64{"timestamp": time.Now().Unix()},
		})

	default:
		b.logger.Debug("ignoring bridge message", zap.String("type", msg.Type))
	}
}

func parseProviderEvent(msg *bridgeInbound) (ProviderEvent, error) {
	switch ProviderEventKind(msg.Event) {
	case EventAccountsChanged:
		var accounts []common.Address
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &accounts); err != nil {
				return ProviderEvent{}, err
			}
		}
		return ProviderEvent{Kind: EventAccountsChanged, Accounts: accounts}, nil

	case EventChainChanged:
		var chainID hexutil.Uint64
		if err := json.Unmarshal(msg.Data, &chainID); err != nil {
			return ProviderEvent{}, err
		}
		return ProviderEvent{Kind: EventChainChanged, ChainID: uint64(chainID)}, nil
	}
	return ProviderEvent{}, fmt.Errorf("unknown event %q", msg.Event)
}

// publish never blocks the read loop: a subscriber that is not keeping up
// loses the notification.
func (b *WalletBridge) publish(ev ProviderEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("dropping wallet event, subscriber is full", zap.String("kind", string(ev.Kind)))
		}
	}
}

func (b *WalletBridge) Subscribe(events chan<- ProviderEvent) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = events
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Notify pushes a server-side notification (wallet_state, spin_result,
// reload) to the page.
func (b *WalletBridge) Notify(event string, data interface{}) error {
	return b.write(bridgeNotification{Type: MessageNotify, Event: event, Data: data})
}

func (b *WalletBridge) write(v interface{}) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return b.conn.WriteJSON(v)
}

func (b *WalletBridge) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	id := b.nextID.Add(1)
	ch := make(chan bridgeReply, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBridgeClosed
	}
	b.pending[id] = ch
	b.mu.Unlock()

	forget := func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}

	if err := b.write(bridgeRequest{Type: MessageRequest, ID: id, Method: method, Params: params}); err != nil {
		forget()
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		forget()
		return ctx.Err()
	case <-b.done:
		return ErrBridgeClosed
	case reply := <-ch:
		if reply.err != nil {
			return reply.err
		}
		if out == nil || len(reply.result) == 0 {
			return nil
		}
		if err := json.Unmarshal(reply.result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
		return nil
	}
}

func (b *WalletBridge) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := b.call(ctx, "eth_requestAccounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (b *WalletBridge) ChainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := b.call(ctx, "eth_chainId", nil, &id); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

func (b *WalletBridge) SwitchChain(ctx context.Context, chainID uint64) error {
	params := []interface{}{map[string]hexutil.Uint64{"chainId": hexutil.Uint64(chainID)}}
	return b.call(ctx, "wallet_switchEthereumChain", params, nil)
}

func (b *WalletBridge) AddChain(ctx context.Context, chain models.ChainConfig) error {
	return b.call(ctx, "wallet_addEthereumChain", []interface{}{chain}, nil)
}

func (b *WalletBridge) SendTransaction(ctx context.Context, tx models.TxRequest) (string, error) {
	var hash string
	if err := b.call(ctx, "eth_sendTransaction", []interface{}{tx}, &hash); err != nil {
		return "", err
	}
	return hash, nil
}

func (b *WalletBridge) Call(ctx context.Context, call models.CallRequest) (string, error) {
	var result string
	if err := b.call(ctx, "eth_call", []interface{}{call, "latest"}, &result); err != nil {
		return "", err
	}
	return result, nil
}
