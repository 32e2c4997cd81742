package lookup

import (
	"slices"
	"strings"
	"sync"

	"tradecore/internal/message"
	"tradecore/pkg/exception"

	"github.com/yanun0323/errors"
)

// Provider answers board lookups.
type Provider interface {
	Lookup(req *message.BoardLookupRequest) ([]*message.Board, error)
}

// Registry stores boards in memory and serves lookups from them.
// Boards are returned in registration order.
type Registry struct {
	mu     sync.RWMutex
	boards []message.Board
	byCode map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byCode: make(map[string]int)}
}

func codeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Add registers a board. Codes are unique, case-insensitively.
func (r *Registry) Add(board message.Board) error {
	key := codeKey(board.Code)
	if key == "" {
		return errors.Wrap(exception.ErrInvalidArgument, "board code is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[key]; ok {
		return errors.Wrapf(exception.ErrInvalidArgument, "board already exists: %s", board.Code)
	}
	board.SecurityTypes = slices.Clone(board.SecurityTypes)
	board.Securities = slices.Clone(board.Securities)
	r.byCode[key] = len(r.boards)
	r.boards = append(r.boards, board)
	return nil
}

// Board returns the board by code.
func (r *Registry) Board(code string) (message.Board, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byCode[codeKey(code)]
	if !ok {
		return message.Board{}, false
	}
	return r.boards[i], true
}

// Len returns the number of registered boards.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.boards)
}

// Lookup returns every board matching the request, each answering it through
// OriginalTransactionID. Empty criteria and sets match everything.
func (r *Registry) Lookup(req *message.BoardLookupRequest) ([]*message.Board, error) {
	if req == nil {
		return nil, exception.ErrNilInstance
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*message.Board
	for i := range r.boards {
		b := &r.boards[i]
		if !matches(b, req) {
			continue
		}
		cp := *b
		cp.OriginalTransactionID = req.TransactionID
		cp.SecurityTypes = slices.Clone(b.SecurityTypes)
		cp.Securities = slices.Clone(b.Securities)
		out = append(out, &cp)
	}
	return out, nil
}

func matches(b *message.Board, req *message.BoardLookupRequest) bool {
	if c := req.Criteria.Code; c != "" && codeKey(c) != codeKey(b.Code) {
		return false
	}
	if e := req.Criteria.Exchange; e != "" && !strings.EqualFold(e, b.Exchange) {
		return false
	}
	if len(req.SecurityTypes) != 0 && !slices.ContainsFunc(req.SecurityTypes, func(t message.SecurityType) bool {
		return slices.Contains(b.SecurityTypes, t)
	}) {
		return false
	}
	if len(req.SecurityIDs) != 0 && !slices.ContainsFunc(req.SecurityIDs, func(id message.SecurityID) bool {
		return codeKey(id.BoardCode) == codeKey(b.Code) || slices.Contains(b.Securities, id)
	}) {
		return false
	}
	return true
}

// Respond runs a lookup and renders its answer as the message stream an
// adapter would deliver: the boards then SubscriptionFinished, or a failed
// SubscriptionResponse.
func Respond(p Provider, req *message.BoardLookupRequest) []message.Message {
	boards, err := p.Lookup(req)
	if err != nil {
		return []message.Message{&message.SubscriptionResponse{
			ResponseFields: message.ResponseFields{OriginalTransactionID: req.GetTransactionID()},
			ErrorFields:    message.ErrorFields{Error: err},
		}}
	}
	out := make([]message.Message, 0, len(boards)+1)
	for _, b := range boards {
		out = append(out, b)
	}
	return append(out, &message.SubscriptionFinished{
		ResponseFields: message.ResponseFields{OriginalTransactionID: req.GetTransactionID()},
	})
}
