// Package entropy draws world seeds. With a random.org API key seeds come
// from a pool of 64-bit blobs fetched over JSON-RPC; without one, or when
// the service fails, they come from crypto/rand.
package entropy

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	randomOrgEndpoint = "https://api.random.org/json-rpc/4/invoke"

	// batch is how many seeds one request buys.
	batch = 16

	seedMask = 1<<63 - 1
)

// Client hands out world seeds from a random.org pool.
type Client struct {
	apiKey   string
	endpoint string
	http     *http.Client

	mu     sync.Mutex
	pool   []int64
	nextID int
}

// NewClient creates a random.org seed source. Returns nil if apiKey is empty;
// a nil Client still yields crypto/rand seeds.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: randomOrgEndpoint,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Enabled reports whether seeds come from random.org.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Seed returns a positive 63-bit seed. The pool is refilled when empty; a
// failed refill falls back to crypto/rand for this seed only.
func (c *Client) Seed(ctx context.Context) int64 {
	if !c.Enabled() {
		return cryptoSeed()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) == 0 {
		seeds, err := c.fetch(ctx)
		if err != nil {
			slog.Warn("random.org refill failed, using crypto/rand", "error", err)
			return cryptoSeed()
		}
		c.pool = seeds
		slog.Debug("random.org pool refilled", "count", len(seeds))
	}

	s := c.pool[0]
	c.pool = c.pool[1:]
	return s
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  blobQuery `json:"params"`
	ID      int       `json:"id"`
}

type blobQuery struct {
	APIKey string `json:"apiKey"`
	N      int    `json:"n"`
	Size   int    `json:"size"` // bits per blob
	Format string `json:"format"`
}

type rpcResponse struct {
	Result *struct {
		Random struct {
			Data []string `json:"data"`
		} `json:"random"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// fetch asks for a batch of 64-bit hex blobs and keeps the non-zero ones,
// masked to 63 bits. Caller holds c.mu.
func (c *Client) fetch(ctx context.Context) ([]int64, error) {
	c.nextID++
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "generateBlobs",
		Params:  blobQuery{APIKey: c.apiKey, N: batch, Size: 64, Format: "hex"},
		ID:      c.nextID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("random.org status %d", resp.StatusCode)
	}

	var out rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode random.org reply: %w", err)
	}
	if out.Error != nil {
		return nil, fmt.Errorf("random.org error %d: %s", out.Error.Code, out.Error.Message)
	}
	if out.Result == nil {
		return nil, errors.New("random.org reply has no result")
	}

	seeds := make([]int64, 0, len(out.Result.Random.Data))
	for _, blob := range out.Result.Random.Data {
		v, err := strconv.ParseUint(blob, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("bad random.org blob %q: %w", blob, err)
		}
		if s := int64(v & seedMask); s != 0 {
			seeds = append(seeds, s)
		}
	}
	if len(seeds) == 0 {
		return nil, errors.New("random.org returned no usable seeds")
	}
	return seeds, nil
}

func cryptoSeed() int64 {
	var buf [8]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand does not fail on supported platforms.
			return time.Now().UnixNano() & seedMask
		}
		if s := int64(binary.LittleEndian.Uint64(buf[:]) & seedMask); s != 0 {
			return s
		}
	}
}
