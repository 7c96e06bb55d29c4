package ai

import (
	"context"
	"time"

	"github.com/zhouzirui/startup-vision/backend/internal/analysis/topic"
)

// FallbackNote closes every fallback reply.
const FallbackNote = "Note: This is a fallback response. To get real-time AI analysis, please configure your API key in settings."

const ideaAssessment = `Thank you for sharing your business idea. As your AI business analyst, here's my assessment:

1. Market Potential: Your idea has potential in the current market landscape.
2. Unique Value Proposition: Consider refining what makes your solution truly unique.
3. Target Audience: Be more specific about which student demographics you're serving.
4. Revenue Model: Explore multiple revenue streams to ensure sustainability.
5. Next Steps: I recommend conducting a small-scale pilot with your fellow students.

Would you like me to elaborate on any of these points or discuss specific aspects of your business model?

` + FallbackNote

const genericPrompt = "I'm your business idea assessment assistant for students. I can help analyze your startup concept, suggest improvements, or discuss market strategies. Please share your business idea or ask a specific question about entrepreneurship.\n\n" + FallbackNote

// FallbackResponder produces canned replies when no credential is configured.
type FallbackResponder struct {
	delay time.Duration
}

// NewFallbackResponder returns a responder that waits delay before answering,
// keeping perceived latency close to the remote path.
func NewFallbackResponder(delay time.Duration) *FallbackResponder {
	return &FallbackResponder{delay: delay}
}

// Respond returns the templated assessment for business-idea messages and a
// generic prompt for everything else.
func (f *FallbackResponder) Respond(ctx context.Context, content string) (string, error) {
	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if topic.Analyze(content).Label == topic.BusinessIdea {
		return ideaAssessment, nil
	}
	return genericPrompt, nil
}
