/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lewtec/refcocos/annotation"
)

func PrintQuery(ctx context.Context, w io.Writer, db *sql.Tx, query string, args ...interface{}) error {
	stmt, err := db.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	result, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return err
	}
	defer result.Close()
	columns, err := result.Columns()
	if err != nil {
		return err
	}
	if len(columns) > 1 {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}
	pointers := make([]interface{}, len(columns))
	container := make([]sql.NullString, len(columns))
	for i := 0; i < len(columns); i++ {
		pointers[i] = &container[i]
	}
	row := make([]string, len(columns))
	for result.Next() {
		if err := result.Scan(pointers...); err != nil {
			return err
		}
		for i, value := range container {
			row[i] = value.String
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return result.Err()
}

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [flags] database [hops|types|distractors|image] [value]",
	Short: "Queries a database written by export sqlite",
	Long: `Queries a database written by 'refcocos export sqlite'.

  query db.sqlite                    annotation count per image
  query db.sqlite hops               annotation count per hops value
  query db.sqlite types              annotation count per reasoning type
  query db.sqlite distractors        annotation count per distractor value
  query db.sqlite hops 2             captions with that hops value
  query db.sqlite image <ref>        captions of one image`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		showIDs, err := cmd.Flags().GetBool("show-ids")
		if err != nil {
			return err
		}
		db, err := annotation.GetDatabase(args[0])
		if err != nil {
			return err
		}
		defer db.Close()

		tx, err := db.BeginTx(cmd.Context(), &sql.TxOptions{
			Isolation: sql.LevelReadUncommitted,
		})
		if err != nil {
			return err
		}
		defer tx.Rollback()

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if len(args) < 2 {
			return PrintQuery(ctx, out, tx, "select i.ref, count(a.id) from images i left join annotations a on a.image = i.ref group by i.position order by i.position")
		}

		column := ""
		switch args[1] {
		case "hops", "distractors":
			column = "a." + args[1]
		case "types":
			column = "t.type"
		case "image":
			column = "a.image"
		default:
			return fmt.Errorf("unknown query '%s'", args[1])
		}
		from := "from annotations a "
		if args[1] == "types" {
			from += "join annotation_types t on t.annotation = a.id "
		}
		if len(args) < 3 {
			if args[1] == "image" {
				return fmt.Errorf("query image needs an image reference")
			}
			return PrintQuery(ctx, out, tx, fmt.Sprintf("select %s, count(*) %s group by %s order by %s", column, from, column, column))
		}

		query := "select "
		if showIDs {
			query += "a.annotation_id, "
		}
		query += "a.image, a.caption "
		query += from
		query += fmt.Sprintf("where %s = ? ", column)
		query += "order by a.id"
		return PrintQuery(ctx, out, tx, query, args[2])
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().BoolP("show-ids", "i", false, "Show annotation ids next to the captions")
}
