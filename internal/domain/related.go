package domain

import "time"

// ObjectKind names the type of record a notification points at.
type ObjectKind string

const (
	KindPost    ObjectKind = "post"
	KindProgram ObjectKind = "program"
	KindWorkout ObjectKind = "workout"
	KindGym     ObjectKind = "gym"
)

// ObjectRef is the persisted {kind, id} reference to a related record.
type ObjectRef struct {
	Kind ObjectKind `json:"kind" dynamodbav:"kind" validate:"required,max=32"`
	ID   string     `json:"id" dynamodbav:"id" validate:"required"`
}

// RelatedObject is one of the fixed reference variants below. Each variant
// knows which translation params it contributes.
type RelatedObject interface {
	Ref() ObjectRef
	Params() map[string]string
}

type PostRef struct {
	ID      string
	Content string
}

func (p PostRef) Ref() ObjectRef { return ObjectRef{Kind: KindPost, ID: p.ID} }

// Params exposes a short excerpt of the post as post_content.
func (p PostRef) Params() map[string]string {
	if p.Content == "" {
		return nil
	}
	return map[string]string{"post_content": excerpt(p.Content, 50)}
}

type ProgramRef struct {
	ID   string
	Name string
}

func (p ProgramRef) Ref() ObjectRef { return ObjectRef{Kind: KindProgram, ID: p.ID} }

func (p ProgramRef) Params() map[string]string {
	if p.Name == "" {
		return nil
	}
	return map[string]string{"program_name": p.Name}
}

type WorkoutRef struct {
	ID          string
	Title       string
	ScheduledAt time.Time
}

func (w WorkoutRef) Ref() ObjectRef { return ObjectRef{Kind: KindWorkout, ID: w.ID} }

func (w WorkoutRef) Params() map[string]string {
	params := map[string]string{}
	if w.Title != "" {
		params["workout_title"] = w.Title
	}
	if !w.ScheduledAt.IsZero() {
		params["workout_time"] = w.ScheduledAt.UTC().Format("15:04")
		params["workout_date"] = w.ScheduledAt.UTC().Format("2006-01-02")
	}
	return params
}

type GymRef struct {
	ID   string
	Name string
}

func (g GymRef) Ref() ObjectRef { return ObjectRef{Kind: KindGym, ID: g.ID} }

func (g GymRef) Params() map[string]string {
	if g.Name == "" {
		return nil
	}
	return map[string]string{"gym_name": g.Name}
}

// GenericRef references a record of any other kind; it contributes no params.
type GenericRef struct {
	Kind ObjectKind
	ID   string
}

func (g GenericRef) Ref() ObjectRef            { return ObjectRef{Kind: g.Kind, ID: g.ID} }
func (g GenericRef) Params() map[string]string { return nil }

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
