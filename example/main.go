package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/client"
)

func main() {
	ctx := context.Background()

	baseURL := os.Getenv("WORKFLOW_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}

	// The REST client stands in for both the persistence backend and the catalog.
	c := client.New(baseURL)
	agent := workflow.Agent{ID: "agent-support", Name: "Support agent"}

	sess := workflow.NewSession(c, agent)
	defer sess.Close()
	g := sess.Graph()

	g.Subscribe(func(ch workflow.Change) {
		switch ch.Type {
		case workflow.NodeAdded:
			fmt.Printf("+ node %s (%s)\n", ch.Node.ID, ch.Node.Kind)
		case workflow.EdgeAdded:
			fmt.Printf("+ edge %s: %s -> %s\n", ch.Edge.ID, ch.Edge.Source, ch.Edge.Target)
		case workflow.ModeChanged:
			fmt.Printf("~ mode %s\n", ch.Mode)
		}
	})

	// ── Build a chain: Start -> phase -> catalog component -> End ─────
	g.AddNode(workflow.KindStart, nil)
	diagnose := g.AddNode(workflow.KindPhase, &workflow.Template{Name: "Diagnose"})

	entries, err := c.Search(ctx, "weather")
	if err != nil {
		log.Fatalf("search catalog: %v", err)
	}
	if len(entries) > 0 {
		g.ImportFromCatalog(entries[0])
	} else {
		fmt.Println("catalog has no weather component; run `workflowd seed` first")
	}
	end := g.AddNode(workflow.KindEnd, nil)

	// Skip edge from the phase straight to End.
	if _, err := g.Connect(diagnose.ID, "", end.ID, ""); err != nil {
		log.Fatalf("connect: %v", err)
	}

	// First save creates the workflow.
	if err := sess.Save(ctx); err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Println("created workflow", sess.WorkflowID())

	// Second save updates it in place.
	if err := g.RenameNode(diagnose.ID, "Diagnose the issue"); err != nil {
		log.Fatalf("rename: %v", err)
	}
	if err := sess.Save(ctx); err != nil {
		log.Fatalf("save: %v", err)
	}

	// ── Markdown mode ─────────────────────────────────────────────────
	if err := g.SetMode(workflow.ModeMarkdown); err != nil {
		log.Fatalf("mode: %v", err)
	}
	g.SetMarkdown("1. Greet the customer\n2. Diagnose the issue\n3. Close the ticket")
	if err := sess.Save(ctx); err != nil {
		log.Fatalf("save: %v", err)
	}

	w, err := c.LoadWorkflow(ctx, sess.WorkflowID())
	if err != nil {
		log.Fatalf("load: %v", err)
	}
	out, _ := json.MarshalIndent(w, "", "  ")
	fmt.Println(string(out))
}
