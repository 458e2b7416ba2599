package main

import (
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/schema"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/source"
	"github.com/Meesho/BharatMLStack/policy-sweep/internal/vocab"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	vocabTable string
	vocabSplit string
	vocabOut   string
)

// fitVocabCmd rebuilds the categorical vocabulary from a training split
var fitVocabCmd = &cobra.Command{
	Use:   "fit-vocab",
	Short: "Fit categorical vocabularies from a reference table",
	Long: `Reads the categorical columns of one split of a reference table in row order
and writes the distinct values of each, in order of first appearance.

Example:
  policy-sweep fit-vocab --table features_split --split train --out models/vocab.json`,
	RunE: fitVocab,
}

func init() {
	fitVocabCmd.Flags().StringVar(&vocabTable, "table", source.ReferenceTableName, "reference table")
	fitVocabCmd.Flags().StringVar(&vocabSplit, "split", "train", "split to read; empty reads the whole table")
	fitVocabCmd.Flags().StringVar(&vocabOut, "out", "", "output path, defaults to VOCAB_PATH")
}

func fitVocab(cmd *cobra.Command, args []string) error {
	out := vocabOut
	if out == "" {
		out = appConfig.VocabPath
	}

	conn, err := connectWarehouse(appConfig)
	if err != nil {
		return err
	}
	defer conn.Close()

	src, err := source.NewWarehouse(conn, appConfig.WarehouseScoringTable)
	if err != nil {
		return err
	}

	builder := vocab.NewBuilder(schema.Default().Categorical())
	rows := 0
	err = src.Reference(cmd.Context(), vocabTable, vocabSplit, func(values map[string]string) error {
		rows++
		for name, value := range values {
			builder.Observe(name, value)
		}
		return nil
	})
	if err != nil {
		return err
	}

	v, err := builder.Build()
	if err != nil {
		return err
	}
	if err := vocab.Save(out, v); err != nil {
		return err
	}

	event := log.Info().Str("table", vocabTable).Str("split", vocabSplit).Int("rows", rows).Str("out", out)
	for _, name := range v.Names() {
		col, _ := v.Column(name)
		event = event.Int(name, col.Len())
	}
	event.Msg("Vocabulary written")
	return nil
}
