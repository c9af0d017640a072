package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v4"
	"gopkg.in/yaml.v3"

	"interview-intel/internal/config"
	"interview-intel/internal/domain/model"
	"interview-intel/internal/domain/ports/repository"
	pg "interview-intel/internal/infra/db/postgres"
	"interview-intel/internal/infra/logging"
	"interview-intel/internal/infra/queue"
	red "interview-intel/internal/infra/redis"
)

// seedPost is the on-disk shape of a fixture post.
type seedPost struct {
	PostID    string   `yaml:"post_id"`
	Title     string   `yaml:"title"`
	Body      string   `yaml:"body"`
	Company   string   `yaml:"company"`
	Role      string   `yaml:"role"`
	Level     string   `yaml:"level"`
	Outcome   string   `yaml:"outcome"`
	Topics    []string `yaml:"topics"`
	TechStack []string `yaml:"tech_stack"`
	DaysAgo   int      `yaml:"days_ago"`
}

var builtin = []seedPost{
	{PostID: "seed-google-1", Title: "Google L4 backend onsite", Body: "Four rounds: two coding on graphs and DP, one system design for a rate limiter, one behavioral. Got the offer after team match.", Company: "Google", Role: "backend", Level: "mid", Outcome: "passed", Topics: []string{"graphs", "dynamic programming", "system design"}, TechStack: []string{"go", "sql"}, DaysAgo: 20},
	{PostID: "seed-google-2", Title: "Google phone screen rejected", Body: "Single coding round on intervals. Ran out of time on the follow up and got rejected a week later.", Company: "Google", Role: "backend", Level: "junior", Outcome: "failed", Topics: []string{"intervals", "arrays"}, TechStack: []string{"python"}, DaysAgo: 45},
	{PostID: "seed-meta-1", Title: "Meta E5 product loop", Body: "Two coding, product architecture and behavioral. Heavy focus on communication and tradeoffs.", Company: "Meta", Role: "fullstack", Level: "senior", Outcome: "passed", Topics: []string{"system design", "behavioral"}, TechStack: []string{"react", "graphql"}, DaysAgo: 70},
	{PostID: "seed-amazon-1", Title: "Amazon SDE2 loop", Body: "Leadership principles in every round, one LLD of a parking lot, SQL window functions question.", Company: "Amazon", Role: "backend", Level: "mid", Outcome: "failed", Topics: []string{"leadership principles", "low level design", "sql"}, TechStack: []string{"java", "sql"}, DaysAgo: 120},
	{PostID: "seed-stripe-1", Title: "Stripe integration round", Body: "Bug bash plus an API integration exercise against a mock payments server. Offer extended.", Company: "Stripe", Role: "backend", Level: "senior", Outcome: "passed", Topics: []string{"debugging", "api design"}, TechStack: []string{"ruby"}, DaysAgo: 200},
}

func opt(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func loadFixtures(path string) ([]seedPost, error) {
	if path == "" {
		return builtin, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	var out []seedPost
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return out, nil
}

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	fixtures := flag.String("posts", "", "optional YAML list of posts; built-in samples when empty")
	enqueue := flag.Bool("enqueue", true, "queue an embedding job for the seeded posts")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	posts, err := loadFixtures(*fixtures)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	txm := pg.NewTxManager(pool)
	repo := pg.NewPostRepo(pool, txm)

	now := time.Now().UTC()
	ids := make([]string, 0, len(posts))
	err = txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, s := range posts {
			p := &model.Post{
				PostID:          s.PostID,
				Title:           s.Title,
				Body:            s.Body,
				Source:          "seed",
				CreatedAt:       now.AddDate(0, 0, -s.DaysAgo),
				Company:         opt(s.Company),
				Role:            opt(s.Role),
				Level:           opt(s.Level),
				Outcome:         opt(s.Outcome),
				Topics:          s.Topics,
				TechStack:       s.TechStack,
				IsRelevant:      true,
				EmbeddingStatus: model.EmbeddingStatusPending,
			}
			if err := repo.Save(ctx, tx, p); err != nil {
				return fmt.Errorf("save %s: %w", s.PostID, err)
			}
			ids = append(ids, s.PostID)
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed posts: %v", err)
	}
	fmt.Printf("seeded %d posts\n", len(ids))

	if !*enqueue || len(ids) == 0 {
		return
	}
	rc, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rc.Close()

	q := queue.New(red.NewJobBroker(rc, cfg.Queue.Prefix), queue.Options{MaxAttempts: cfg.Queue.MaxAttempts}, logging.New(cfg.Log, true))
	job, err := q.Enqueue(ctx, model.JobSpec{PostIDs: ids})
	if err != nil {
		log.Fatalf("enqueue: %v", err)
	}
	fmt.Printf("queued embedding job %s (%d posts)\n", job.ID, len(ids))
}
