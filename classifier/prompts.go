package classifier

import "fmt"

const maxPromptText = 4000

func clip(text string) string {
	r := []rune(text)
	if len(r) > maxPromptText {
		return string(r[:maxPromptText])
	}
	return text
}

func eligibilityPrompt(text, criteria string) string {
	return fmt.Sprintf(`You screen real estate listings for outreach.
Criteria: %s

Decide whether the listing below matches the criteria.
Return JSON only: {"eligible": true or false, "reason": "short reason"}

Listing:
%s`, criteria, clip(text))
}

func sellerPrompt(text string) string {
	return fmt.Sprintf(`You are classifying real estate listings as PRIVATE SELLER or AGENT.
Return strict JSON only.
Fields: is_private (bool), confidence (0-10), reason (string), agency_name (string, empty if none).

Listing text:
%s`, clip(text))
}

func viabilityPrompt(text, criteria string) string {
	return fmt.Sprintf(`Rate this property for short-term rental conversion.
Criteria: %s

Return JSON only:
{"viable": true or false, "rating": 0-10, "reason": "short reason", "qualification_factors": ["factor", ...]}

Listing:
%s`, criteria, clip(text))
}

func contactPrompt(text string) string {
	return fmt.Sprintf(`Extract the seller's contact details from this listing.
Return JSON only: {"email": "address or empty", "phone": "number or empty"}
Do not invent details that are not in the text.

Listing:
%s`, clip(text))
}

func structuredPrompt(text string) string {
	return fmt.Sprintf(`Extract one real estate listing from this page fragment.
Return JSON only:
{"title": "", "price": "", "location": "", "contact": {"email": "", "phone": ""}, "is_private": true or false, "confidence": 0-10}
confidence is how sure you are that the seller is a private owner rather than an agency.

Fragment:
%s`, clip(text))
}
