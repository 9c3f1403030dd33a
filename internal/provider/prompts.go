package provider

import "fmt"

// rubric shared by every prompt. Changing any prompt text requires bumping
// cache.RubricVersion.
const rubric = `- Compose 5-8 short words.
- Lowercase letters only; separate words with hyphens.
- Maximum total length: 80 characters.
- Prefer structure: <primary-subject>--<specific-detail>.
- Use helpful discriminators when applicable (e.g., chart-type, version, color, angle, year).`

// GeneratePrompt asks for a fresh filename.
const GeneratePrompt = `You are an expert at naming image files for clarity and organization.
Follow this strict rubric to propose a filename for the provided image:
` + rubric + `
- If the current filename already follows this rubric, keep the same stem.
Return only the stem and extension components for the filename.`

// AssessPrompt asks whether an existing filename can be kept.
const AssessPrompt = `You are validating whether a proposed filename is suitable for the given image.
Use this rubric:
- 5-8 short words, lowercase, hyphen-separated.
- Prefer structure: <primary-subject>--<specific-detail>.
- Use helpful discriminators when applicable.
- If the proposed name already satisfies the rubric and matches the content, mark it suitable.
Answer by assessing suitability only; do not propose alternatives.`

// AnalyzePrompt combines assessment and proposal in one request.
const AnalyzePrompt = `You are an expert at analyzing and naming image files for clarity and organization.

Your tasks:
1. Assess whether the current filename follows the rubric and matches the image content.
2. Propose an optimal filename for the image.

Rubric:
` + rubric + `

Instructions:
- If the current filename already satisfies the rubric and matches the content, set current_name_suitable to true and propose the same name.
- Otherwise set current_name_suitable to false and propose a better name.
- Always return both the assessment and a proposed name.
- Give brief reasoning for the decision.`

func assessPrompt(candidate string) string {
	return fmt.Sprintf("%s\n\nProposed filename: '%s'.", AssessPrompt, candidate)
}

func analyzePrompt(current string) string {
	return fmt.Sprintf("%s\n\nCurrent filename: '%s'", AnalyzePrompt, current)
}

// JSON schemas sent as structured output constraints. OpenAI strict mode
// needs every property listed as required and no extra properties.
var (
	proposedNameSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"stem":      map[string]interface{}{"type": "string"},
			"extension": map[string]interface{}{"type": "string"},
		},
		"required":             []string{"stem", "extension"},
		"additionalProperties": false,
	}

	assessmentSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"suitable": map[string]interface{}{"type": "boolean"},
		},
		"required":             []string{"suitable"},
		"additionalProperties": false,
	}

	analysisSchema = map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"current_name_suitable": map[string]interface{}{"type": "boolean"},
			"proposed_name":         proposedNameSchema,
			"reasoning":             map[string]interface{}{"type": "string"},
		},
		"required":             []string{"current_name_suitable", "proposed_name", "reasoning"},
		"additionalProperties": false,
	}
)
