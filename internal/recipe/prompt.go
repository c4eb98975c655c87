package recipe

import (
	"fmt"
	"strings"

	"flyerchef/internal/deal"
)

// maxPromptDeals bounds the rendered deal list so the prompt cannot grow
// with the size of a merchant's flyer.
const maxPromptDeals = 50

const outputContract = `Return your ENTIRE response as a single valid JSON object with this exact structure and nothing else (no markdown, no commentary):
{
  "recipes": [
    {
      "name": "Recipe Name",
      "ingredients": [{"name": "ingredient name", "quantity": "amount"}],
      "steps": ["step 1", "step 2"],
      "cook_time": "30 minutes",
      "prep_time": "15 minutes",
      "servings": 4,
      "difficulty": "Easy"
    }
  ]
}
"servings" must be an integer and "difficulty" must be one of "Easy", "Medium" or "Hard".`

// BuildPrompt renders the instruction block for the generative model from the
// deal records of a postal code. It is deterministic: the same records in the
// same order produce the same prompt.
func BuildPrompt(deals []deal.Record, postalCode string) string {
	var b strings.Builder

	if len(deals) == 0 {
		fmt.Fprintf(&b, "You are a helpful meal planning assistant. There are no grocery deals available for postal code %s this week, so suggest exactly 5 creative budget-friendly recipes using affordable, commonly available ingredients.\n\n", postalCode)
	} else {
		fmt.Fprintf(&b, "You are a helpful meal planning assistant. Below are this week's grocery deals near postal code %s:\n\n", postalCode)
		for i, d := range deals {
			if i == maxPromptDeals {
				break
			}
			fmt.Fprintf(&b, "- %s - $%s at %s\n", d.Name, d.Price, d.Merchant)
		}
		b.WriteString("\nSuggest exactly 5 recipes that prioritize the deal items above. When an ingredient comes from the deal list, use its exact product name. Common pantry staples (salt, pepper, oil, flour, spices) may be assumed.\n")
	}

	b.WriteString("Spread the recipes across difficulty levels and cuisines.\n\n")
	b.WriteString(outputContract)

	return b.String()
}
