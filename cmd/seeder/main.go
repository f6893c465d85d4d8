package main

import (
	"bufio"
	"context"
	"flag"
	"iter"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/poiesic/vecsync"
	"github.com/poiesic/vecsync/core"
	"github.com/poiesic/vecsync/storage"
)

var sentences = []string{
	"The quick brown fox jumps over the lazy dog.",
	"A lighthouse keeper logs every ship that passes the point.",
	"Morning fog settled over the harbor before the ferries ran.",
	"The night train carries mail between the coastal towns.",
	"She repaired the telescope with parts from an old radio.",
	"Wild horses crossed the frozen river at first light.",
	"The bakery sells out of rye bread by eight most days.",
	"A violinist practiced scales in the empty concert hall.",
	"The orchard stands where the railway station used to be.",
	"Bees returned to the almond trees a week early this spring.",
	"The archivist found a letter misfiled for sixty years.",
	"Low tide exposes the wreck twice a day in winter.",
	"A kestrel hovered over the motorway embankment.",
	"The printing press in the basement still runs on belts.",
	"Glacier melt feeds the turbines through the summer months.",
	"The chess club meets above the hardware store on Thursdays.",
	"Her greenhouse tomatoes ripen a month ahead of the garden ones.",
	"The observatory closes when the valley wind picks up.",
	"A tugboat nudged the container ship into the narrow lock.",
	"The beekeeper marks each queen with a dot of paint.",
	"Sourdough starter survives the cold in the cellar.",
	"The cartographer walked the ridge line twice to be sure.",
	"Streetlights along the canal switch off at midnight.",
	"The foundry pours on Tuesdays and machines the rest of the week.",
	"A barn owl nests in the rafters of the old granary.",
	"The deploy failed because the clock on the build box drifted.",
	"Someone renamed the staging database and told nobody.",
	"The pager went off twice before the coffee finished brewing.",
	"Retries without jitter turned a blip into an outage.",
	"The migration ran for six hours and rolled back in four.",
	"Monitoring was green while the customers were red.",
	"The cron job ran twice on the day the clocks changed.",
	"An off-by-one in the pager rotation gave Ana two weeks straight.",
	"The cache warmed itself just in time for the traffic to stop.",
	"A single slow disk dragged the whole quorum down.",
	"The feature flag outlived the feature by a year.",
	"Log rotation filled the disk it was supposed to protect.",
	"The load test passed because it never left the datacenter.",
	"Every incident review ends with a ticket nobody picks up.",
	"The backup restored perfectly onto the wrong cluster.",
}

var (
	seedFileName = flag.String("src", "", "file of seed data, one record per line")
	dbPath       = flag.String("db", "./vecsync_db", "path to BadgerDB database directory")
	ownerID      = flag.String("owner", "seed", "owner ID stamped on seeded records")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// addBatched reads lines from an iterator and adds them to the source store
// in batches. Blank lines are skipped.
func addBatched(ctx context.Context, source storage.SourceRepository, lines iter.Seq[string], owner string, batchSize int) error {
	batch := make([]*core.SourceRecord, 0, batchSize)

	for line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		batch = append(batch, &core.SourceRecord{
			ID:      uuid.NewString(),
			OwnerID: owner,
			Content: line,
		})
		if len(batch) == batchSize {
			if _, err := source.AddSourceRecords(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	// Add any remaining records
	if len(batch) > 0 {
		if _, err := source.AddSourceRecords(ctx, batch...); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	engine, err := vecsync.NewEngine(*dbPath)
	if err != nil {
		panic(err)
	}
	defer engine.Close()

	ctx := context.Background()

	// Determine source of seed data
	var lines iter.Seq[string]
	if seedFileName != nil && *seedFileName != "" {
		lines, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		lines = linesFromSlice(sentences)
	}

	// Add in batches of 25
	if err := addBatched(ctx, engine.SourceRepository(), lines, *ownerID, 25); err != nil {
		panic(err)
	}

	count, err := engine.SourceRepository().CountSourceRecords(ctx)
	if err != nil {
		panic(err)
	}
	slog.Info("seeding complete", "source_records", count, "db", *dbPath)
}
