package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/dealcore/internal/facts"
	"github.com/ppiankov/dealcore/internal/llm"
	"github.com/ppiankov/dealcore/internal/model"
)

const narratorSystemPrompt = `You answer shoppers' questions about one product listing.
Use ONLY the facts given. Never state a price, spec or feature that is not in the facts.
If the facts do not answer the question, say the listing does not specify it.
Answer in at most three sentences of plain text.`

const stricterInstruction = `Your previous answer mentioned details that are not in the facts.
Repeat nothing except what the fact lines state. Do not mention any other number, spec or product name.`

// narrate asks the model for a short answer grounded on the assembled
// facts. Output mentioning anything the listing does not state is
// regenerated once under stricter instructions and dropped if it still fails.
func (p *Pipeline) narrate(ctx context.Context, question string, offer *model.Offer, factLines string) string {
	if p.narrator == nil {
		return ""
	}

	prompt := NarrativePrompt(question, offer, factLines)
	for attempt := 0; attempt < 2; attempt++ {
		system := narratorSystemPrompt
		if attempt > 0 {
			system += "\n\n" + stricterInstruction
		}

		resp, err := p.narrator.Complete(ctx, llm.CompletionRequest{
			System:      system,
			Prompt:      prompt,
			MaxTokens:   200,
			Temperature: 0.2,
		})
		if err != nil {
			p.log.Debug().Err(err).Msg("narrative unavailable")
			return ""
		}

		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return ""
		}
		issues := facts.CheckText(text, offer)
		if len(issues) == 0 {
			return text
		}
		p.log.Warn().
			Int("attempt", attempt+1).
			Interface("issues", issues).
			Int("offer", offer.SequenceNumber).
			Msg("narrative rejected")
	}
	return ""
}

// NarrativePrompt frames the user's question with the fact lines only
func NarrativePrompt(question string, offer *model.Offer, factLines string) string {
	return fmt.Sprintf("Product #%d: %s\n\nFacts:\n%s\n\nQuestion: %s",
		offer.SequenceNumber, offer.Name(), factLines, question)
}
