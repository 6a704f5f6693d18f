package domain

import "strings"

// STAR sections, in chunk order
const (
	SectionSituation = "Situation"
	SectionTask      = "Task"
	SectionAction    = "Action"
	SectionResult    = "Result"
)

// Profile is the structured source content answered over
type Profile struct {
	Owner     string     `json:"owner" yaml:"owner"`
	Role      string     `json:"role" yaml:"role"`
	StarItems []StarItem `json:"star_items" yaml:"star_items"`
}

// StarItem is one Situation/Task/Action/Result story
type StarItem struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	Situation string `json:"situation" yaml:"situation"`
	Task      string `json:"task" yaml:"task"`
	Action    string `json:"action" yaml:"action"`
	Result    string `json:"result" yaml:"result"`
}

// Chunks splits every STAR item into one chunk per non-empty section.
// Order is item order, then Situation, Task, Action, Result.
func (p *Profile) Chunks() []DocChunk {
	chunks := make([]DocChunk, 0, len(p.StarItems)*4)
	for _, item := range p.StarItems {
		sections := []struct {
			name    string
			content string
		}{
			{SectionSituation, item.Situation},
			{SectionTask, item.Task},
			{SectionAction, item.Action},
			{SectionResult, item.Result},
		}
		for _, s := range sections {
			content := strings.TrimSpace(s.content)
			if content == "" {
				continue
			}
			chunks = append(chunks, DocChunk{
				ID:      item.ID + "-" + strings.ToLower(s.name),
				Title:   item.Title + " (" + s.name + ")",
				Content: content,
				Meta: map[string]string{
					MetaItemID:    item.ID,
					MetaItemTitle: item.Title,
					MetaSection:   s.name,
				},
			})
		}
	}
	return chunks
}
