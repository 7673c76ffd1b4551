package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/facilityhub/registry-cli/internal/model"
)

var importUploader string

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Bulk import candidate records from a CSV file",
	Long:  "Imports a CSV with a header row. Recognized columns: name, address, country, uploader_id. Records are queued unprocessed; run 'process' afterwards.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		recs, skipped, err := readRecordsCSV(f, importUploader)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			return eris.New("no importable rows found")
		}

		n, err := st.BulkCreateRecords(cmd.Context(), recs)
		if err != nil {
			return err
		}
		zap.L().Info("import complete",
			zap.String("file", args[0]),
			zap.Int64("imported", n),
			zap.Int("skipped", skipped),
		)
		fmt.Printf("imported %d records (%d rows skipped)\n", n, skipped)
		return nil
	},
}

// readRecordsCSV parses candidate records from CSV. Rows missing a name,
// country, or uploader are skipped, not fatal.
func readRecordsCSV(r io.Reader, defaultUploader string) ([]model.CandidateRecord, int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, eris.Wrap(err, "read csv header")
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, 0, eris.New("csv missing required column: name")
	}
	if _, ok := col["country"]; !ok {
		return nil, 0, eris.New("csv missing required column: country")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var recs []model.CandidateRecord
	skipped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, eris.Wrap(err, "read csv row")
		}

		uploader := field(row, "uploader_id")
		if uploader == "" {
			uploader = defaultUploader
		}
		name := field(row, "name")
		country := field(row, "country")
		if name == "" || country == "" || uploader == "" {
			skipped++
			continue
		}

		recs = append(recs, model.CandidateRecord{
			RawName:    name,
			RawAddress: field(row, "address"),
			RawCountry: country,
			UploaderID: uploader,
		})
	}
	return recs, skipped, nil
}

func init() {
	importCmd.Flags().StringVar(&importUploader, "uploader", "", "uploader id for rows without an uploader_id column")
	rootCmd.AddCommand(importCmd)
}
