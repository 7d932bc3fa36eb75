// Package model defines the domain types shared across the generation pipeline.
package model

// Stage identifies one step of the fixed six-step pipeline.
type Stage string

const (
	StageSpec     Stage = "spec"
	StageTOC      Stage = "toc"
	StagePlan     Stage = "plan"
	StageDraft    Stage = "draft"
	StageImages   Stage = "images"
	StageAssemble Stage = "assemble"
)

// Stages lists the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageSpec, StageTOC, StagePlan, StageDraft, StageImages, StageAssemble}
}

// RunState carries the inputs and the accumulated stage outputs of a single
// generation run. It is owned by the pipeline state machine; each stage writes
// only its own field, and fields produced by earlier stages are treated as
// read-only once a later stage has consumed them.
type RunState struct {
	Problem      string `json:"problem"`
	PagesTotal   int    `json:"pages_total"`
	WordsPerPage int    `json:"words_per_page"`

	Spec         *BookSpec     `json:"spec,omitempty"`
	TOC          []TocEntry    `json:"toc,omitempty"`
	Plans        []ChapterPlan `json:"plans,omitempty"`
	Drafts       []Draft       `json:"drafts,omitempty"`
	ImagePrompts []ImagePrompt `json:"image_prompts,omitempty"`
	BookMarkdown string        `json:"book_markdown,omitempty"`
}

// BookSpec is the normalized book specification produced by the SPEC stage.
// Audience, Goals and Constraints are always non-nil after normalization,
// even when the model omitted them.
type BookSpec struct {
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle,omitempty"`
	Audience    []string `json:"audience"`
	Goals       []string `json:"goals"`
	Constraints []string `json:"constraints"`
	Tone        string   `json:"tone,omitempty"`
}

// TocEntry is one chapter of the table of contents. Numbers are unique and
// consecutive starting at 1; TargetPages is positive and the sum across all
// entries equals the requested total page count after rebalancing.
type TocEntry struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	TargetPages int    `json:"target_pages"`
}

// ChapterPlan ties to exactly one TocEntry by Number.
type ChapterPlan struct {
	Number       int           `json:"number"`
	Title        string        `json:"title"`
	Objectives   []string      `json:"objectives"`
	KeyIdeas     []string      `json:"key_ideas"`
	ImagePrompts []ImagePrompt `json:"image_prompts"`
}

// ImagePrompt is a single illustration request collected from a chapter plan.
type ImagePrompt struct {
	Chapter int    `json:"chapter,omitempty"`
	Purpose string `json:"purpose"`
	Prompt  string `json:"prompt"`
}

// DraftStatus is the lifecycle state of a chapter draft.
type DraftStatus string

const (
	DraftPending    DraftStatus = "pending"
	DraftInProgress DraftStatus = "in_progress"
	DraftDone       DraftStatus = "done"
	DraftFailed     DraftStatus = "failed"
)

// Draft ties to exactly one ChapterPlan by Number. A failed draft carries a
// placeholder Body so assembly can proceed without it.
type Draft struct {
	Number   int         `json:"number"`
	Title    string      `json:"title"`
	Body     string      `json:"text"`
	Status   DraftStatus `json:"status"`
	Attempts int         `json:"attempts,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// WordsNeeded converts a page budget into a word budget, with a floor so even
// tiny chapters get a workable target.
func WordsNeeded(pages, wordsPerPage int) int {
	n := pages * wordsPerPage
	if n < 100 {
		return 100
	}
	return n
}
