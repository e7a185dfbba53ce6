package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/library"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/network"
	"github.com/Adithya-Monish-Kumar-K/term-proximity-network/internal/textproc"
)

var runOpts struct {
	corpus           string
	query            string
	reference        string
	maxResults       int
	weightMode       string
	limitDistance    int
	summarize        string
	includeReference bool
	topN             int
	workers          int
	lemmatize        bool
	stem             bool
	stopWords        []string
	compact          bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compute the neighbour network of a query over a corpus",
	Long: `Load a JSON corpus (an array of {"id", "title", "abstract"} objects),
retrieve the documents ranked for the query and print the network of terms
found near the reference term.

Unset flags fall back to the proximity section of the config.

Examples:
  proximity run --corpus data/corpus.json -q "wireless sensor network"
  proximity run --corpus 'data/**/*.json' -q "iot" --reference sensor --limit-distance -1
  proximity run --corpus data/corpus.json -q "iot" --summarize median`,
	Args: cobra.NoArgs,
	RunE: runNetwork,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.corpus, "corpus", "", "corpus file or ** glob (default library.corpusPath)")
	f.StringVarP(&runOpts.query, "query", "q", "", "query used to rank documents")
	f.StringVarP(&runOpts.reference, "reference", "r", "", "reference term (default: last query term)")
	f.IntVarP(&runOpts.maxResults, "max-results", "n", 0, "number of ranked documents to use")
	f.StringVar(&runOpts.weightMode, "weight", "", "rank weighting: none, linear or inverse")
	f.IntVar(&runOpts.limitDistance, "limit-distance", 0, "maximum distance counted, -1 for unbounded")
	f.StringVar(&runOpts.summarize, "summarize", "", "per-unit summary: none, mean or median")
	f.BoolVar(&runOpts.includeReference, "include-reference", false, "keep the reference term's self-distances")
	f.IntVar(&runOpts.topN, "top", 0, "number of neighbour terms to return")
	f.IntVar(&runOpts.workers, "workers", 0, "units processed concurrently")
	f.BoolVar(&runOpts.lemmatize, "lemmatize", false, "lemmatize nouns")
	f.BoolVar(&runOpts.stem, "stem", false, "apply Porter stemming")
	f.StringSliceVar(&runOpts.stopWords, "stop-word", nil, "extra stop word (repeatable)")
	f.BoolVar(&runOpts.compact, "compact", false, "print single-line JSON")
	_ = runCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(runCmd)
}

func runNetwork(cmd *cobra.Command, args []string) error {
	pc := cfg.Proximity
	f := cmd.Flags()
	if f.Changed("max-results") {
		pc.MaxResults = runOpts.maxResults
	}
	if f.Changed("weight") {
		pc.WeightMode = runOpts.weightMode
	}
	if f.Changed("limit-distance") {
		pc.LimitDistance = runOpts.limitDistance
	}
	if f.Changed("summarize") {
		pc.SummarizeMode = runOpts.summarize
	}
	if f.Changed("include-reference") {
		pc.IncludeReferenceTerm = runOpts.includeReference
	}
	if f.Changed("top") {
		pc.TopN = runOpts.topN
	}
	if f.Changed("workers") {
		pc.Workers = runOpts.workers
	}
	if f.Changed("lemmatize") {
		pc.Lemmatize = runOpts.lemmatize
	}
	if f.Changed("stem") {
		pc.Stem = runOpts.stem
	}
	pc.StopWords = append(pc.StopWords, runOpts.stopWords...)

	corpus := runOpts.corpus
	if corpus == "" {
		corpus = cfg.Library.CorpusPath
	}
	lib, err := library.NewDefault()
	if err != nil {
		return err
	}
	loaded, err := lib.LoadGlob(corpus)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	if loaded == 0 {
		return fmt.Errorf("no documents found in %s", corpus)
	}

	normalizer, err := textproc.New(textproc.Options{
		StopWords:        pc.StopWords,
		DefaultStopWords: pc.DefaultStopWords,
		Lemmatize:        pc.Lemmatize,
		Stem:             pc.Stem,
	})
	if err != nil {
		return err
	}
	svc, err := network.NewService(lib, normalizer, pc)
	if err != nil {
		return err
	}

	n, err := svc.Compute(cmd.Context(), network.Request{Query: runOpts.query, ReferenceTerm: runOpts.reference})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if !runOpts.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(n)
}
