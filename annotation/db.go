package annotation

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/lewtec/refcocos/internal/domain"
	"github.com/lewtec/refcocos/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func GetDatabase(filename string) (*sql.DB, error) {
	return sql.Open("sqlite", filename)
}

// MigrateDatabase brings the export schema up to date
func MigrateDatabase(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("while opening migrations: %w", err)
	}
	drv, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("while preparing migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return fmt.Errorf("while preparing migrations: %w", err)
	}
	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("while applying migrations: %w", err)
	}
	return nil
}

// ExportDatabase replaces the contents of the export tables with the
// catalog and the given annotations, in a single transaction
func ExportDatabase(ctx context.Context, db *sql.DB, images []domain.CandidateImage, imagePrefix string, annotations []domain.Annotation) error {
	log.Printf("ExportDatabase: starting transaction")
	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("while starting export transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"annotation_types", "annotations", "images"} {
		if _, err := tx.ExecContext(ctx, "delete from "+table); err != nil {
			return fmt.Errorf("while clearing table '%s': %w", table, err)
		}
	}

	log.Printf("ExportDatabase: populating images table")
	for position, img := range images {
		_, err := tx.ExecContext(ctx, `
insert into images (position, image_id, file_name, path, ref, width, height) values (?, ?, ?, ?, ?, ?, ?)
        `, position, img.ImageID, img.FileName, img.Path, repository.ImageRef(imagePrefix, img.FileName), img.Width, img.Height)
		if err != nil {
			return fmt.Errorf("while inserting image %d: %w", img.ImageID, err)
		}
	}

	log.Printf("ExportDatabase: populating annotations table")
	for _, ann := range annotations {
		var box [4]any
		var normalized [4]any
		if ann.Solution != nil {
			for i, v := range ann.Solution {
				box[i] = v
			}
		}
		if ann.NormalizedSolution != nil {
			for i, v := range ann.NormalizedSolution {
				normalized[i] = v
			}
		}
		var imageIndex any
		if ann.ImageIndex != nil {
			imageIndex = *ann.ImageIndex
		}
		var caption any
		if ann.Caption != nil {
			caption = *ann.Caption
		}
		res, err := tx.ExecContext(ctx, `
insert into annotations (
    annotation_id, dataset, text_type, image, file_name, image_index, width, height, caption, problem,
    x1, y1, x2, y2, nx1, ny1, nx2, ny2, empty_case, hops, occluded, distractors
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        `,
			ann.AnnotationID, ann.Dataset, ann.TextType, ann.Image, ann.FileName, imageIndex, ann.Width, ann.Height, caption, ann.Problem,
			box[0], box[1], box[2], box[3], normalized[0], normalized[1], normalized[2], normalized[3],
			ann.Categories.EmptyCase, ann.Categories.Hops.String(), ann.Categories.Occluded, ann.Categories.Distractors.String(),
		)
		if err != nil {
			return fmt.Errorf("while inserting annotation '%s': %w", ann.AnnotationID, err)
		}
		row, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("while reading row id of annotation '%s': %w", ann.AnnotationID, err)
		}
		for _, typ := range ann.Categories.Type {
			_, err := tx.ExecContext(ctx, "insert into annotation_types (annotation, type) values (?, ?)", row, typ)
			if err != nil {
				return fmt.Errorf("while inserting type of annotation '%s': %w", ann.AnnotationID, err)
			}
		}
	}

	log.Printf("ExportDatabase: success! commiting transaction to the database")
	return tx.Commit()
}
