package training

import (
	"context"
	"fmt"

	"github.com/myrjola/traincore/internal/errors"
)

type sqliteExerciseRepository struct {
	baseRepository
}

// List returns the catalog ordered by id.
func (r *sqliteExerciseRepository) List(ctx context.Context, approvedOnly bool) (_ []Exercise, err error) {
	rows, err := r.db.ReadOnly.QueryContext(ctx, `
		SELECT id, name, movement_pattern, category, primary_muscle_groups, secondary_muscle_groups,
		       equipment, contraindication_tags, alternatives, difficulty, intensity, bodyweight, approved,
		       description_markdown
		FROM exercises
		WHERE approved = 1 OR NOT ?
		ORDER BY id`, approvedOnly)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close rows: %w", closeErr))
		}
	}()

	var exercises []Exercise
	for rows.Next() {
		var (
			ex                                                Exercise
			primary, secondary, equipment, tags, alternatives string
		)
		if err = rows.Scan(&ex.ID, &ex.Name, &ex.MovementPattern, &ex.Category, &primary, &secondary,
			&equipment, &tags, &alternatives, &ex.Difficulty, &ex.Intensity, &ex.Bodyweight, &ex.Approved,
			&ex.DescriptionMarkdown); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		for _, col := range []struct {
			data string
			dst  *[]string
		}{
			{primary, &ex.PrimaryMuscleGroups},
			{secondary, &ex.SecondaryMuscleGroups},
			{equipment, &ex.Equipment},
			{tags, &ex.ContraindicationTags},
			{alternatives, &ex.Alternatives},
		} {
			if err = scanJSON(col.data, col.dst); err != nil {
				return nil, fmt.Errorf("exercise %s: %w", ex.ID, err)
			}
		}
		exercises = append(exercises, ex)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return exercises, nil
}
