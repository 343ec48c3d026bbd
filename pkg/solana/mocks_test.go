package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var testTokenProgram = solanago.TokenProgramID

func testKeypair(t *testing.T, seed byte) solanago.PrivateKey {
	t.Helper()
	return solanago.PrivateKey(ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize)))
}

func testSignature(b byte) string {
	var sig solanago.Signature
	for i := range sig {
		sig[i] = b
	}
	return sig.String()
}

// rpcError is returned by CallFunc to answer with a JSON-RPC error object
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string { return e.Message }

// mockNode is a JSON-RPC endpoint answering through CallFunc
type mockNode struct {
	mu    sync.Mutex
	calls []string

	CallFunc func(method string, params []any) (any, error)

	server *httptest.Server
}

func newMockNode(t *testing.T, call func(method string, params []any) (any, error)) *mockNode {
	t.Helper()
	n := &mockNode{CallFunc: call}
	n.server = httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(n.server.Close)
	return n
}

func (n *mockNode) client() *rpc.Client {
	return rpc.New(n.server.URL)
}

func (n *mockNode) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params []any           `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.calls = append(n.calls, req.Method)
	n.mu.Unlock()

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	var (
		res any
		err = fmt.Errorf("unexpected call %s", req.Method)
	)
	if n.CallFunc != nil {
		res, err = n.CallFunc(req.Method, req.Params)
	}
	switch e := err.(type) {
	case nil:
		resp["result"] = res
	case *rpcError:
		resp["error"] = e
	default:
		resp["error"] = &rpcError{Code: -32000, Message: err.Error()}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *mockNode) count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, m := range n.calls {
		if m == method {
			c++
		}
	}
	return c
}
