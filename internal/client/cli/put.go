package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/changesync/internal/models"
)

func newPutCommand(get func() *Cli) *cobra.Command {
	return &cobra.Command{
		Use:   "put <entity> <id|-> key=value...",
		Short: "Queue an upsert of an entity",
		Long: `Queue an upsert of a product or category in the local outbox.

Use "-" as id to generate a new one. Values are parsed as JSON when possible,
otherwise stored as strings: price=4.50 is a number, name=Coffee is a string.`,
		Example: `  changesync put product - name=Coffee price=4.50 active=true
  changesync put category c1 name=Drinks position=2`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return get().runPut(cmd, args)
		},
	}
}

func (c *Cli) runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	kind, err := models.ParseEntityKind(args[0])
	if err != nil {
		return err
	}

	id := args[1]
	if id == "-" {
		id = c.newID()
	}

	fields, err := parseFields(args[2:])
	if err != nil {
		return err
	}

	basis, err := c.metadata.GetKnownRev(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("failed to get known revision: %w", err)
	}

	change := &models.PendingChange{
		Kind:      kind,
		ID:        id,
		Op:        models.OpUpsert,
		BasisRev:  basis,
		Fields:    fields,
		UpdatedAt: c.now(),
	}
	if err := c.outbox.Enqueue(ctx, change); err != nil {
		return err
	}

	c.io.Printf("Queued upsert %s/%s (basis rev %d)\n", kind, id, basis)
	return nil
}

// parseFields разбирает аргументы key=value
func parseFields(args []string) (map[string]json.RawMessage, error) {
	fields := make(map[string]json.RawMessage, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q: expected key=value", arg)
		}
		if key == models.FieldID || models.IsControlField(key) {
			return nil, fmt.Errorf("field %q is managed by sync and cannot be set", key)
		}
		if _, dup := fields[key]; dup {
			return nil, fmt.Errorf("field %q given twice", key)
		}
		fields[key] = fieldValue(value)
	}
	return fields, nil
}

func fieldValue(value string) json.RawMessage {
	if json.Valid([]byte(value)) {
		return json.RawMessage(value)
	}
	quoted, _ := json.Marshal(value) // строка всегда сериализуется
	return quoted
}
