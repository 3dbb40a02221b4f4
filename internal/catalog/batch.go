package catalog

import (
	"context"

	"sakila-graphql/internal/dbexec"
	"sakila-graphql/internal/planner"
)

// GenresForFilms resolves categories for many films. Films missing from the
// returned map have no genre.
func (r *Repository) GenresForFilms(ctx context.Context, filmIDs []int64) (map[int64]Category, error) {
	result := make(map[int64]Category, len(filmIDs))
	for _, chunk := range chunkIDs(uniqueIDs(filmIDs), r.maxInClause) {
		plan, err := planner.PlanGenresForFilms(chunk)
		if err != nil {
			return nil, err
		}
		err = r.run(ctx, "batch genres", plan, func(rows dbexec.Rows) error {
			var (
				filmID int64
				c      Category
			)
			if err := rows.Scan(&filmID, &c.ID, &c.Name); err != nil {
				return err
			}
			// Rows arrive ordered by category id; keep the first per film.
			if _, seen := result[filmID]; !seen {
				result[filmID] = c
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ActorsForFilms lists casts for many films. Films missing from the map have
// no credited actors.
func (r *Repository) ActorsForFilms(ctx context.Context, filmIDs []int64) (map[int64][]Actor, error) {
	result := make(map[int64][]Actor, len(filmIDs))
	for _, chunk := range chunkIDs(uniqueIDs(filmIDs), r.maxInClause) {
		plan, err := planner.PlanActorsForFilms(chunk)
		if err != nil {
			return nil, err
		}
		err = r.run(ctx, "batch actors", plan, func(rows dbexec.Rows) error {
			var (
				filmID int64
				a      Actor
			)
			if err := rows.Scan(&filmID, &a.ID, &a.FirstName, &a.LastName); err != nil {
				return err
			}
			result[filmID] = append(result[filmID], a)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RentalCountsForFilms counts rentals for many films. Films missing from the
// map were never rented.
func (r *Repository) RentalCountsForFilms(ctx context.Context, filmIDs []int64) (map[int64]int, error) {
	result := make(map[int64]int, len(filmIDs))
	for _, chunk := range chunkIDs(uniqueIDs(filmIDs), r.maxInClause) {
		plan, err := planner.PlanRentalCountsForFilms(chunk)
		if err != nil {
			return nil, err
		}
		err = r.run(ctx, "batch rental counts", plan, func(rows dbexec.Rows) error {
			var filmID, count int64
			if err := rows.Scan(&filmID, &count); err != nil {
				return err
			}
			result[filmID] = int(count)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func chunkIDs(ids []int64, max int) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	if max <= 0 || len(ids) <= max {
		return [][]int64{ids}
	}
	chunks := make([][]int64, 0, (len(ids)+max-1)/max)
	for start := 0; start < len(ids); start += max {
		end := start + max
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
