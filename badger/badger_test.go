package badger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInMemory(t *testing.T) {
	s, err := Open("", InMemory())
	require.NoError(t, err)
	defer s.Close()

	storetest.Run(t, s)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, WithGC(0, 0))
	require.NoError(t, err)

	created, err := s.CreateWorkflow(ctx, &workflow.Workflow{
		Name:  "persistent",
		Nodes: []workflow.Node{{ID: "1", Kind: workflow.KindStart}},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dir, WithGC(0, 0))
	require.NoError(t, err)
	defer s.Close()

	got, err := s.LoadWorkflow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "persistent", got.Name)
	assert.Len(t, got.Nodes, 1)
}

func TestOpenRequiresDirectory(t *testing.T) {
	_, err := Open("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory is required")
}

func TestSlogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := slogSink{l: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	sink.Warningf("level %d compacted\n", 2)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="level 2 compacted"`)

	buf.Reset()
	sink.Debugf("quiet")
	assert.Contains(t, buf.String(), "level=DEBUG")
}

func TestDropSchemaClearsEverything(t *testing.T) {
	ctx := context.Background()
	s, err := Open("", InMemory())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.CreateComponent(ctx, &workflow.Component{Name: "bot", Kind: workflow.KindAgent})
	require.NoError(t, err)
	require.NoError(t, s.DropSchema(ctx))

	list, err := s.ListComponents(ctx, workflow.ComponentFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}
