package resolve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/dealcore/internal/llm"
	"github.com/ppiankov/dealcore/internal/model"
)

const matchSystemPrompt = "You are a precise product matching assistant. Return only valid JSON."

// llmReply is the structured answer expected from the model
type llmReply struct {
	Matches []struct {
		ProductNumber int     `json:"product_number"`
		Confidence    float64 `json:"confidence"`
		Reasoning     string  `json:"reasoning"`
	} `json:"matches"`
	IsAmbiguous bool `json:"is_ambiguous"`
}

// matchLLM asks the model which listed offer the utterance means. Answers
// naming a number outside the set are dropped.
func (r *Resolver) matchLLM(ctx context.Context, utterance string, rs *model.ResultSet) []model.ProductMatch {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		System:      matchSystemPrompt,
		Prompt:      MatchPrompt(utterance, rs),
		JSON:        true,
		MaxTokens:   300,
		Temperature: 0.1,
	})
	if err != nil {
		r.log.Debug().Err(err).Msg("llm reference fallback unavailable")
		return nil
	}

	matches, ok := ParseMatchReply(resp.Text, rs)
	if !ok {
		r.log.Debug().Str("reply", resp.Text).Msg("llm reference fallback returned malformed output")
		return nil
	}
	return matches
}

// ParseMatchReply validates a model reply against the set. The second
// return is false when the reply is not the expected JSON.
func ParseMatchReply(text string, rs *model.ResultSet) ([]model.ProductMatch, bool) {
	var reply llmReply
	if err := json.Unmarshal([]byte(stripFences(text)), &reply); err != nil {
		return nil, false
	}

	var matches []model.ProductMatch
	seen := make(map[int]bool)
	for _, m := range reply.Matches {
		o := rs.BySequence(m.ProductNumber)
		if o == nil || seen[m.ProductNumber] {
			// never trust an answer outside the set
			continue
		}
		seen[m.ProductNumber] = true

		conf := m.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		reason := strings.TrimSpace(m.Reasoning)
		if reason == "" {
			reason = "language model match"
		}
		matches = append(matches, model.ProductMatch{
			Offer:      o,
			Confidence: conf,
			Method:     model.MatchLLM,
			Reason:     reason,
		})
	}

	if reply.IsAmbiguous && len(matches) > 1 {
		candidates := make([]*model.Offer, len(matches))
		for i := range matches {
			candidates[i] = matches[i].Offer
		}
		return ambiguous(model.MatchLLM, "language model found several candidates", candidates), true
	}
	return matches, true
}

// MatchPrompt lists the offers compactly and asks for a JSON match
func MatchPrompt(utterance string, rs *model.ResultSet) string {
	var b strings.Builder
	b.WriteString("Match the user's message to the product(s) it refers to.\n\nAvailable products:\n")
	for i := range rs.Offers {
		o := &rs.Offers[i]
		fmt.Fprintf(&b, "%d. %s", o.SequenceNumber, o.Name())
		if o.Price != nil {
			fmt.Fprintf(&b, " - $%s", o.Price.StringFixed(2))
		}
		if o.Store != "" {
			fmt.Fprintf(&b, " (%s)", o.Store)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "\nUser message: %q\n\n", utterance)
	b.WriteString(`Return JSON:
{"matches": [{"product_number": <number>, "confidence": <0.0-1.0>, "reasoning": "<why>"}], "is_ambiguous": <true/false>}

Rules:
- Only use product numbers from the list above
- If several products fit equally, include them all and set is_ambiguous to true
- Return an empty matches list if the message does not clearly refer to a listed product`)
	return b.String()
}

// stripFences removes a markdown code fence around a JSON reply
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	t = strings.TrimPrefix(t, "json")
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}
