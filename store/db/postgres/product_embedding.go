package postgres

import (
	"context"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
)

// UpsertProductEmbedding inserts or refreshes one product vector.
func (d *DB) UpsertProductEmbedding(ctx context.Context, name, model string, embedding []float32) error {
	stmt := `
		INSERT INTO product_embedding (product_name, model, embedding, updated_ts)
		VALUES (` + placeholders(4) + `)
		ON CONFLICT (product_name, model)
		DO UPDATE SET
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
	`
	vector := pgvector.NewVector(embedding)
	if _, err := d.db.ExecContext(ctx, stmt, name, model, vector, time.Now().Unix()); err != nil {
		return errors.Wrapf(err, "failed to upsert embedding for %s", name)
	}
	return nil
}

// SearchNearest returns the k product names closest to the query vector by
// cosine distance.
func (d *DB) SearchNearest(ctx context.Context, model string, query []float32, k int) ([]string, error) {
	stmt := `
		SELECT product_name
		FROM product_embedding
		WHERE model = ` + placeholder(1) + `
		ORDER BY embedding <=> ` + placeholder(2) + `
		LIMIT ` + placeholder(3)

	rows, err := d.db.QueryContext(ctx, stmt, model, pgvector.NewVector(query), k)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search product embeddings")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan product name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}

// CountEmbeddings reports how many vectors the model currently has.
func (d *DB) CountEmbeddings(ctx context.Context, model string) (int, error) {
	var count int
	stmt := `SELECT COUNT(*) FROM product_embedding WHERE model = ` + placeholder(1)
	if err := d.db.QueryRowContext(ctx, stmt, model).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count product embeddings")
	}
	return count, nil
}
