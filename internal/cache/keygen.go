package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// DefaultKeyGenerator implements KeyGenerator using SHA-256 hashing.
type DefaultKeyGenerator struct {
	// Prefix is prepended to all generated keys.
	Prefix string
}

// NewKeyGenerator creates a new DefaultKeyGenerator with optional prefix.
func NewKeyGenerator(prefix string) *DefaultKeyGenerator {
	return &DefaultKeyGenerator{Prefix: prefix}
}

// Generate creates a SHA-256 hash key from the request parameters.
// The key format is: [prefix:]namespace:sha256(params)
func (g *DefaultKeyGenerator) Generate(params KeyParams) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "model:%s", params.Model)

	if len(params.Messages) > 0 {
		fmt.Fprintf(&sb, "|messages:%s", params.Messages)
	}
	if params.Temperature != nil {
		sb.WriteString("|temp:" + strconv.FormatFloat(*params.Temperature, 'g', -1, 64))
	}
	if params.MaxTokens > 0 {
		fmt.Fprintf(&sb, "|max_tokens:%d", params.MaxTokens)
	}
	if params.TopP != nil {
		sb.WriteString("|top_p:" + strconv.FormatFloat(*params.TopP, 'g', -1, 64))
	}

	// Map iteration order is random; sort so equal params hash equally.
	keys := make([]string, 0, len(params.Extra))
	for k := range params.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "|%s:%s", k, params.Extra[k])
	}

	return g.build(params.Namespace, sb.String())
}

// EmbeddingKey creates a key for a single embedding input under model.
func (g *DefaultKeyGenerator) EmbeddingKey(model, input string) string {
	return g.build("embedding", "model:"+model+"|input:"+input)
}

func (g *DefaultKeyGenerator) build(namespace, content string) string {
	hash := sha256.Sum256([]byte(content))

	var key strings.Builder
	if g.Prefix != "" {
		key.WriteString(g.Prefix)
		key.WriteString(":")
	}
	if namespace != "" {
		key.WriteString(namespace)
		key.WriteString(":")
	}
	key.WriteString(hex.EncodeToString(hash[:]))
	return key.String()
}
