package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/quill/internal/actor"
	"github.com/ShayCichocki/quill/internal/config"
	"github.com/ShayCichocki/quill/pkg/models"
)

var actorCmd = &cobra.Command{
	Use:   "actor",
	Short: "Manage actor settings and custom actors",
	Long: `Inspect and change how actors run.

Settings saved here are stored in the database and override the config file
for that actor kind. Custom actors are user-defined instructions the planner
can assign tasks to as CUSTOM:<id>.`,
}

var actorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List actor kinds with their effective settings, and custom actors",
	Args:  cobra.NoArgs,
	RunE:  runActorList,
}

var actorSetCmd = &cobra.Command{
	Use:   "set <kind> <key=value>...",
	Short: "Persist settings for an actor kind",
	Long: `Persist settings for an actor kind.

Keys: enabled, provider, model, temperature, max_tokens, safety, instructions.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runActorSet,
}

var actorImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or update custom actors from a YAML file (- for stdin)",
	Long: `Create or update custom actors from YAML.

The file holds one actor or a list of actors:

  - id: poet
    name: Poet
    description: Writes short verse
    instructions: Answer in rhyming couplets.
    enabled: true`,
	Args: cobra.ExactArgs(1),
	RunE: runActorImport,
}

var actorExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print every custom actor as YAML in the import format",
	Args:  cobra.NoArgs,
	RunE:  runActorExport,
}

var (
	customBoard        string
	customName         string
	customDescription  string
	customInstructions string
	customProvider     string
	customModel        string
	customDisabled     bool
)

var actorAddCmd = &cobra.Command{
	Use:   "add-custom <id>",
	Short: "Create or update one custom actor",
	Args:  cobra.ExactArgs(1),
	RunE:  runActorAdd,
}

func init() {
	actorAddCmd.Flags().StringVar(&customBoard, "board", "", "Restrict the actor to one board")
	actorAddCmd.Flags().StringVar(&customName, "name", "", "Display name")
	actorAddCmd.Flags().StringVar(&customDescription, "description", "", "What the actor is for (shown to the planner)")
	actorAddCmd.Flags().StringVar(&customInstructions, "instructions", "", "Instructions prepended to every prompt")
	actorAddCmd.Flags().StringVar(&customProvider, "provider", "", "Provider override")
	actorAddCmd.Flags().StringVar(&customModel, "model", "", "Model override")
	actorAddCmd.Flags().BoolVar(&customDisabled, "disabled", false, "Create the actor disabled")

	actorCmd.AddCommand(actorListCmd)
	actorCmd.AddCommand(actorSetCmd)
	actorCmd.AddCommand(actorAddCmd)
	actorCmd.AddCommand(actorImportCmd)
	actorCmd.AddCommand(actorExportCmd)
}

func runActorList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	deps := actor.Deps{Store: db, Config: config.NewLive(cfg)}
	for _, t := range models.AllActorTypes() {
		if t == models.ActorCustom {
			continue
		}
		ac, err := actor.ResolveConfig(ctx, deps, t)
		if err != nil {
			return err
		}
		symbol, attr := "✓", color.FgGreen
		if !ac.Enabled {
			symbol, attr = "✗", color.FgRed
		}
		model := ac.Model
		if model == "" {
			model = "default model"
		}
		printStatus(symbol, fmt.Sprintf("%-11s %s / %s  temp=%.1f max_tokens=%d safety=%s",
			t, ac.Provider, model, ac.Temperature, ac.MaxTokens, ac.Safety), attr)
	}

	customs, err := db.ListCustomActors(ctx, "")
	if err != nil {
		return fmt.Errorf("list custom actors: %w", err)
	}
	if len(customs) == 0 {
		return nil
	}
	fmt.Println("\nCustom actors:")
	for _, c := range customs {
		symbol, attr := "✓", color.FgGreen
		if !c.Enabled {
			symbol, attr = "✗", color.FgRed
		}
		line := fmt.Sprintf("%s%s  %s", models.CustomActorPrefix, c.ID, c.Name)
		if c.BoardID != "" {
			line += fmt.Sprintf(" (board %s)", c.BoardID)
		}
		printStatus(symbol, line, attr)
	}
	return nil
}

func runActorSet(cmd *cobra.Command, args []string) error {
	t, _, ok := models.ParseActorType(args[0])
	if !ok || t == models.ActorCustom {
		return fmt.Errorf("unknown actor kind %q", args[0])
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	current, err := actor.ResolveConfig(ctx, actor.Deps{Store: db, Config: config.NewLive(cfg)}, t)
	if err != nil {
		return err
	}
	for _, kv := range args[1:] {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			return fmt.Errorf("expected key=value, got %q", kv)
		}
		if err := setActorField(&current, key, value); err != nil {
			return err
		}
	}
	current.ActorType = t
	current.UpdatedAt = time.Now()
	if err := db.SaveActorConfig(ctx, &current); err != nil {
		return fmt.Errorf("save %s settings: %w", t, err)
	}
	printStatus("✓", fmt.Sprintf("Saved %s settings", t), color.FgGreen)
	return nil
}

func setActorField(c *models.ActorConfig, key, value string) error {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid value for enabled: %w", err)
		}
		c.Enabled = b
	case "provider":
		c.Provider = value
	case "model":
		c.Model = value
	case "temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid value for temperature: %w", err)
		}
		c.Temperature = f
	case "max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_tokens: %w", err)
		}
		c.MaxTokens = n
	case "safety":
		c.Safety = value
	case "instructions":
		c.Instructions = value
	default:
		return fmt.Errorf("unknown actor setting: %s", key)
	}
	return nil
}

func runActorAdd(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(customInstructions) == "" {
		return errors.New("--instructions is required")
	}
	a := models.CustomActor{
		ID:           args[0],
		BoardID:      customBoard,
		Name:         customName,
		Description:  customDescription,
		Instructions: customInstructions,
		Provider:     customProvider,
		Model:        customModel,
		Enabled:      !customDisabled,
	}
	return saveCustomActors([]models.CustomActor{a})
}

func runActorImport(cmd *cobra.Command, args []string) error {
	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read custom actors: %w", err)
	}
	actors, err := parseCustomActors(data)
	if err != nil {
		return err
	}
	return saveCustomActors(actors)
}

// parseCustomActors decodes one custom actor or a list of them.
// Enabled defaults to true when the document omits it.
func parseCustomActors(data []byte) ([]models.CustomActor, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse custom actors: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, errors.New("no custom actors in file")
	}
	doc := node.Content[0]

	var items []*yaml.Node
	switch doc.Kind {
	case yaml.SequenceNode:
		items = doc.Content
	case yaml.MappingNode:
		items = []*yaml.Node{doc}
	default:
		return nil, fmt.Errorf("parse custom actors: line %d: expected a mapping or a list", doc.Line)
	}

	out := make([]models.CustomActor, 0, len(items))
	for _, item := range items {
		a := models.CustomActor{Enabled: true}
		if err := item.Decode(&a); err != nil {
			return nil, fmt.Errorf("parse custom actor at line %d: %w", item.Line, err)
		}
		a.ID = strings.TrimSpace(a.ID)
		if a.ID == "" {
			return nil, fmt.Errorf("custom actor at line %d has no id", item.Line)
		}
		if strings.TrimSpace(a.Instructions) == "" {
			return nil, fmt.Errorf("custom actor %q has no instructions", a.ID)
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		out = append(out, a)
	}
	return out, nil
}

func saveCustomActors(actors []models.CustomActor) error {
	db, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	for i := range actors {
		if err := db.SaveCustomActor(ctx, &actors[i]); err != nil {
			return fmt.Errorf("save custom actor %s: %w", actors[i].ID, err)
		}
		printStatus("✓", fmt.Sprintf("Saved custom actor %s%s", models.CustomActorPrefix, actors[i].ID), color.FgGreen)
	}
	return nil
}

func runActorExport(cmd *cobra.Command, args []string) error {
	db, err := openStoreOnly()
	if err != nil {
		return err
	}
	defer db.Close()

	actors, err := db.ListCustomActors(context.Background(), "")
	if err != nil {
		return fmt.Errorf("list custom actors: %w", err)
	}
	out, err := customActorYAML(actors)
	if err != nil {
		return fmt.Errorf("encode custom actors: %w", err)
	}
	_, err = os.Stdout.Write(out)
	return err
}

// customActorYAML renders actors in the import format.
func customActorYAML(actors []models.CustomActor) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(actors); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
