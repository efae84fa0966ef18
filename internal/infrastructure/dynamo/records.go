package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gymbuddy-notify/internal/domain"
)

type postRecord struct {
	PostID  string `dynamodbav:"post_id"`
	Content string `dynamodbav:"content"`
}

type programRecord struct {
	ProgramID string `dynamodbav:"program_id"`
	Name      string `dynamodbav:"name"`
}

type workoutRecord struct {
	WorkoutID   string    `dynamodbav:"workout_id"`
	Title       string    `dynamodbav:"title"`
	ScheduledAt time.Time `dynamodbav:"scheduled_at"`
}

type gymRecord struct {
	GymID string `dynamodbav:"gym_id"`
	Name  string `dynamodbav:"name"`
}

// RecordTables names the read-only tables behind each related object kind.
type RecordTables struct {
	Posts    string
	Programs string
	Workouts string
	Gyms     string
}

// RecordRepo resolves a stored {kind, id} reference into its typed variant.
type RecordRepo struct {
	client  *dynamodb.Client
	tables  RecordTables
	lookups map[domain.ObjectKind]func(context.Context, string) (domain.RelatedObject, error)
}

func NewRecordRepo(client *dynamodb.Client, tables RecordTables) *RecordRepo {
	r := &RecordRepo{client: client, tables: tables}
	r.lookups = map[domain.ObjectKind]func(context.Context, string) (domain.RelatedObject, error){
		domain.KindPost:    r.post,
		domain.KindProgram: r.program,
		domain.KindWorkout: r.workout,
		domain.KindGym:     r.gym,
	}
	return r
}

// Resolve loads the record behind ref. Kinds without a table resolve to a
// GenericRef.
func (r *RecordRepo) Resolve(ctx context.Context, ref domain.ObjectRef) (domain.RelatedObject, error) {
	lookup, ok := r.lookups[ref.Kind]
	if !ok {
		return domain.GenericRef{Kind: ref.Kind, ID: ref.ID}, nil
	}
	return lookup(ctx, ref.ID)
}

func (r *RecordRepo) post(ctx context.Context, id string) (domain.RelatedObject, error) {
	var rec postRecord
	if err := r.get(ctx, r.tables.Posts, "post_id", id, &rec); err != nil {
		return nil, err
	}
	return domain.PostRef{ID: rec.PostID, Content: rec.Content}, nil
}

func (r *RecordRepo) program(ctx context.Context, id string) (domain.RelatedObject, error) {
	var rec programRecord
	if err := r.get(ctx, r.tables.Programs, "program_id", id, &rec); err != nil {
		return nil, err
	}
	return domain.ProgramRef{ID: rec.ProgramID, Name: rec.Name}, nil
}

func (r *RecordRepo) workout(ctx context.Context, id string) (domain.RelatedObject, error) {
	var rec workoutRecord
	if err := r.get(ctx, r.tables.Workouts, "workout_id", id, &rec); err != nil {
		return nil, err
	}
	return domain.WorkoutRef{ID: rec.WorkoutID, Title: rec.Title, ScheduledAt: rec.ScheduledAt}, nil
}

func (r *RecordRepo) gym(ctx context.Context, id string) (domain.RelatedObject, error) {
	var rec gymRecord
	if err := r.get(ctx, r.tables.Gyms, "gym_id", id, &rec); err != nil {
		return nil, err
	}
	return domain.GymRef{ID: rec.GymID, Name: rec.Name}, nil
}

func (r *RecordRepo) get(ctx context.Context, table, keyName, id string, out interface{}) error {
	res, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       map[string]types.AttributeValue{keyName: &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return err
	}
	if res.Item == nil {
		return fmt.Errorf("%s %s not found: %w", table, id, domain.ErrNotFound)
	}
	return attributevalue.UnmarshalMap(res.Item, out)
}
