package fulltext

import (
	"strings"

	"litreview/internal/screener"
)

// SystemPrompt is the stage-2 variant of the screening prompt: the model reads
// the full text and an unsure answer is reserved for genuinely missing evidence.
var SystemPrompt = strings.NewReplacer(
	"based only on the provided Article Title and Abstract", "based on the provided Article Title and Full Text",
	"If the decision cannot be made based solely on the title and abstract", "If the full text does not report the information needed for a criterion",
).Replace(screener.SystemPrompt)
