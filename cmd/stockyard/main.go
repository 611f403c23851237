package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/saltbush/stockyard/internal/adapters/storage/sqlite"
	"github.com/saltbush/stockyard/internal/app"
	"github.com/saltbush/stockyard/internal/config"
	"github.com/saltbush/stockyard/internal/domain"
	"github.com/saltbush/stockyard/internal/platform"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// main handles main.
func main() {
	env := &cliEnv{stdout: os.Stdout, stderr: os.Stderr}
	root := newRootCmd(env)
	if err := fang.Execute(context.Background(), root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// cliEnv carries resolved runtime state shared by every subcommand.
type cliEnv struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool

	stdout io.Writer
	stderr io.Writer

	resolved bool
	paths    platform.Paths
	cfg      config.Config
	logger   *charmLog.Logger
}

// resolve loads paths and config once per invocation.
func (env *cliEnv) resolve() error {
	if env.resolved {
		return nil
	}
	if env.stdout == nil {
		env.stdout = io.Discard
	}
	if env.stderr == nil {
		env.stderr = io.Discard
	}

	appName := strings.TrimSpace(env.appName)
	if appName == "" {
		appName = "stockyard"
	}
	env.appName = appName

	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: env.devMode,
	})
	if err != nil {
		return fmt.Errorf("resolve default paths: %w", err)
	}
	env.paths = paths

	configPath := strings.TrimSpace(env.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("STOCKYARD_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	env.configPath = configPath

	dbOverridden := strings.TrimSpace(env.dbPath) != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("STOCKYARD_DB_PATH")); envPath != "" {
			env.dbPath = envPath
			dbOverridden = true
		} else {
			env.dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(env.dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = env.dbPath
	}
	env.cfg = cfg

	level, err := charmLog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("parse logging level %q: %w", cfg.Logging.Level, err)
	}
	env.logger = charmLog.NewWithOptions(env.stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})

	env.resolved = true
	return nil
}

// withService opens the repository, runs one command flow, and closes it.
func (env *cliEnv) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error) error {
	if err := env.resolve(); err != nil {
		return err
	}
	env.logger.Debug("opening sqlite repository", "db_path", env.cfg.Database.Path)
	repo, err := sqlite.Open(env.cfg.Database.Path)
	if err != nil {
		env.logger.Error("sqlite open failed", "db_path", env.cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			env.logger.Warn("sqlite close failed", "db_path", env.cfg.Database.Path, "err", closeErr)
		}
	}()

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		ReweighIntervalDays: env.cfg.Tasks.ReweighIntervalDays,
	})
	return fn(cmd.Context(), svc)
}

// newRootCmd builds the full command tree.
func newRootCmd(env *cliEnv) *cobra.Command {
	root := &cobra.Command{
		Use:          "stockyard",
		Short:        "Event-sourced livestock ledger for a single property",
		Long:         "stockyard keeps an append-only ledger of livestock events\nand derives the current herd state, withholding periods, and\ncompliance reports from it.",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&env.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&env.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().StringVar(&env.appName, "app", "", "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&env.devMode, "dev", defaultDevMode(), "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCmd(env),
		newAnimalCmd(env),
		newMobCmd(env),
		newPaddockCmd(env),
		newProductCmd(env),
		newRecordCmd(env),
		newLedgerCmd(env),
		newWHPCmd(env),
		newTasksCmd(env),
		newReportCmd(env),
		newExportCmd(env),
		newImportCmd(env),
		newBackupCmd(env),
		newRestoreCmd(env),
		newVerifyCmd(env),
		newRebuildCmd(env),
	)
	return root
}

// defaultDevMode handles default dev mode.
func defaultDevMode() bool {
	raw := strings.TrimSpace(os.Getenv("STOCKYARD_DEV_MODE"))
	if raw == "" {
		return version == "dev"
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return version == "dev"
	}
	return v
}

// newPathsCmd builds the requested command.
func newPathsCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Show resolved config and data paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.resolve(); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "app: %s\n", env.appName)
			fmt.Fprintf(env.stdout, "dev_mode: %t\n", env.devMode)
			fmt.Fprintf(env.stdout, "config: %s\n", env.configPath)
			fmt.Fprintf(env.stdout, "data_dir: %s\n", env.paths.DataDir)
			fmt.Fprintf(env.stdout, "backups_dir: %s\n", env.paths.BackupsDir)
			fmt.Fprintf(env.stdout, "db: %s\n", env.cfg.Database.Path)
			return nil
		},
	}
}

// newAnimalCmd builds the requested command.
func newAnimalCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "animal",
		Short: "Register and inspect animals",
	}

	var reg app.RegisterAnimalInput
	var dob string
	register := &cobra.Command{
		Use:   "register",
		Short: "Register an animal and append its birth event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				born, err := parseDatePtr(dob)
				if err != nil {
					return fmt.Errorf("parse --dob: %w", err)
				}
				reg.DateOfBirth = born
				a, err := svc.RegisterAnimal(ctx, reg)
				if err != nil {
					return fmt.Errorf("register animal: %w", err)
				}
				env.logger.Info("animal registered", "id", a.ID, "eid", a.EID, "tag", a.VisualTag)
				fmt.Fprintf(env.stdout, "registered %s (%s)\n", a.DisplayID(), a.ID)
				return nil
			})
		},
	}
	register.Flags().StringVar(&reg.EID, "eid", "", "electronic ID (NLIS tag)")
	register.Flags().StringVar(&reg.VisualTag, "tag", "", "visual tag")
	register.Flags().StringVar((*string)(&reg.Species), "species", string(domain.SpeciesCattle), "species (cattle|sheep)")
	register.Flags().StringVar(&reg.Breed, "breed", "", "breed")
	register.Flags().StringVar((*string)(&reg.Sex), "sex", string(domain.SexFemale), "sex (female|male|steer|wether)")
	register.Flags().StringVar(&dob, "dob", "", "date of birth (YYYY-MM-DD)")
	register.Flags().StringVar(&reg.MobID, "mob", "", "mob id")
	register.Flags().StringVar(&reg.DamID, "dam", "", "dam animal id")
	register.Flags().StringVar(&reg.SireID, "sire", "", "sire animal id")
	register.Flags().StringVar(&reg.Notes, "notes", "", "free-form notes")
	register.Flags().StringVar(&reg.RecordedBy, "by", "", "who recorded this")

	show := &cobra.Command{
		Use:   "show <id|eid|tag>",
		Short: "Show one animal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				a, err := svc.ResolveAnimal(ctx, args[0])
				if err != nil {
					return fmt.Errorf("resolve animal %q: %w", args[0], err)
				}
				return printJSON(env.stdout, a)
			})
		},
	}

	var listStatus, listMob, listSpecies string
	list := &cobra.Command{
		Use:   "list",
		Short: "List animals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				filter := app.AnimalFilter{MobID: listMob}
				if listStatus != "" {
					filter.Statuses = []domain.AnimalStatus{domain.AnimalStatus(listStatus)}
				}
				if listSpecies != "" {
					filter.Species = domain.Species(listSpecies)
				}
				animals, err := svc.ListAnimals(ctx, filter)
				if err != nil {
					return fmt.Errorf("list animals: %w", err)
				}
				tw := newTable(env.stdout)
				fmt.Fprintln(tw, "ID\tTAG\tEID\tSPECIES\tSEX\tSTATUS\tMOB")
				for _, a := range animals {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
						a.ID, a.VisualTag, a.EID, a.Species, a.Sex, a.Status, a.MobID)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&listStatus, "status", "", "filter by status (active|sold|dead|missing)")
	list.Flags().StringVar(&listMob, "mob", "", "filter by mob id")
	list.Flags().StringVar(&listSpecies, "species", "", "filter by species")

	var updTag, updBreed, updNotes string
	update := &cobra.Command{
		Use:   "update <id|eid|tag>",
		Short: "Edit descriptive fields (tag, breed, notes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				a, err := svc.ResolveAnimal(ctx, args[0])
				if err != nil {
					return fmt.Errorf("resolve animal %q: %w", args[0], err)
				}
				tag, breed, notes := a.VisualTag, a.Breed, a.Notes
				if cmd.Flags().Changed("tag") {
					tag = updTag
				}
				if cmd.Flags().Changed("breed") {
					breed = updBreed
				}
				if cmd.Flags().Changed("notes") {
					notes = updNotes
				}
				updated, err := svc.UpdateAnimalDetails(ctx, a.ID, tag, breed, notes)
				if err != nil {
					return fmt.Errorf("update animal: %w", err)
				}
				fmt.Fprintf(env.stdout, "updated %s\n", updated.DisplayID())
				return nil
			})
		},
	}
	update.Flags().StringVar(&updTag, "tag", "", "visual tag")
	update.Flags().StringVar(&updBreed, "breed", "", "breed")
	update.Flags().StringVar(&updNotes, "notes", "", "free-form notes")

	cmd.AddCommand(register, show, list, update)
	return cmd
}

// newMobCmd builds the requested command.
func newMobCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mob",
		Short: "Manage mobs",
	}

	var species, paddock, description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a mob, optionally placed in a paddock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				m, err := svc.CreateMob(ctx, args[0], domain.Species(species), description, paddock)
				if err != nil {
					return fmt.Errorf("create mob: %w", err)
				}
				fmt.Fprintf(env.stdout, "created mob %s (%s)\n", m.Name, m.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&species, "species", string(domain.SpeciesCattle), "species (cattle|sheep)")
	create.Flags().StringVar(&paddock, "paddock", "", "initial paddock id")
	create.Flags().StringVar(&description, "description", "", "description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List mobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				mobs, err := svc.ListMobs(ctx)
				if err != nil {
					return fmt.Errorf("list mobs: %w", err)
				}
				tw := newTable(env.stdout)
				fmt.Fprintln(tw, "ID\tNAME\tSPECIES\tPADDOCK")
				for _, m := range mobs {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Species, m.PaddockID)
				}
				return tw.Flush()
			})
		},
	}

	var updName, updDescription string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a mob's name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				m, err := svc.UpdateMobDetails(ctx, args[0], updName, updDescription)
				if err != nil {
					return fmt.Errorf("update mob: %w", err)
				}
				fmt.Fprintf(env.stdout, "updated mob %s\n", m.Name)
				return nil
			})
		},
	}
	update.Flags().StringVar(&updName, "name", "", "mob name")
	update.Flags().StringVar(&updDescription, "description", "", "description")

	cmd.AddCommand(create, list, update)
	return cmd
}

// newPaddockCmd builds the requested command.
func newPaddockCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paddock",
		Short: "Manage paddocks",
	}

	var areaHa float64
	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a paddock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				p, err := svc.CreatePaddock(ctx, args[0], areaHa, description)
				if err != nil {
					return fmt.Errorf("create paddock: %w", err)
				}
				fmt.Fprintf(env.stdout, "created paddock %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
	create.Flags().Float64Var(&areaHa, "area", 0, "area in hectares")
	create.Flags().StringVar(&description, "description", "", "description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List paddocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				paddocks, err := svc.ListPaddocks(ctx)
				if err != nil {
					return fmt.Errorf("list paddocks: %w", err)
				}
				tw := newTable(env.stdout)
				fmt.Fprintln(tw, "ID\tNAME\tAREA_HA")
				for _, p := range paddocks {
					fmt.Fprintf(tw, "%s\t%s\t%.1f\n", p.ID, p.Name, p.AreaHa)
				}
				return tw.Flush()
			})
		},
	}

	var updName, updDescription string
	var updArea float64
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a paddock's name, area, or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				var area *float64
				if cmd.Flags().Changed("area") {
					area = &updArea
				}
				p, err := svc.UpdatePaddockDetails(ctx, args[0], updName, area, updDescription)
				if err != nil {
					return fmt.Errorf("update paddock: %w", err)
				}
				fmt.Fprintf(env.stdout, "updated paddock %s\n", p.Name)
				return nil
			})
		},
	}
	update.Flags().StringVar(&updName, "name", "", "paddock name")
	update.Flags().Float64Var(&updArea, "area", 0, "area in hectares")
	update.Flags().StringVar(&updDescription, "description", "", "description")

	cmd.AddCommand(create, list, update)
	return cmd
}

// newProductCmd builds the requested command.
func newProductCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "product",
		Short: "Manage treatment products and their withholding windows",
	}

	var in domain.ProductInput
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				in.Name = args[0]
				p, err := svc.CreateProduct(ctx, in)
				if err != nil {
					return fmt.Errorf("create product: %w", err)
				}
				fmt.Fprintf(env.stdout, "created product %s (%s)\n", p.Name, p.ID)
				return nil
			})
		},
	}
	create.Flags().StringVar(&in.ActiveNumber, "active", "", "APVMA/active constituent number")
	create.Flags().IntVar(&in.MeatWHPDays, "meat-whp", 0, "meat withholding period in days")
	create.Flags().IntVar(&in.MilkWHPDays, "milk-whp", 0, "milk withholding period in days")
	create.Flags().IntVar(&in.ESIDays, "esi", 0, "export slaughter interval in days")
	create.Flags().StringVar(&in.DefaultDose, "dose", "", "default dose")
	create.Flags().StringVar((*string)(&in.DefaultRoute), "route", "", "default route (oral|injection|pour_on|intramammary|topical)")
	create.Flags().StringVar(&in.Notes, "notes", "", "free-form notes")

	list := &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				products, err := svc.ListProducts(ctx)
				if err != nil {
					return fmt.Errorf("list products: %w", err)
				}
				tw := newTable(env.stdout)
				fmt.Fprintln(tw, "ID\tNAME\tMEAT_WHP\tMILK_WHP\tESI")
				for _, p := range products {
					fmt.Fprintf(tw, "%s\t%s\t%dd\t%dd\t%dd\n", p.ID, p.Name, p.MeatWHPDays, p.MilkWHPDays, p.ESIDays)
				}
				return tw.Flush()
			})
		},
	}

	cmd.AddCommand(create, list)
	return cmd
}

// recordFlags carries the subject and bookkeeping flags shared by every
// record subcommand.
type recordFlags struct {
	animal string
	mob    string
	date   string
	note   string
	by     string
}

// bind registers the shared flags on one record subcommand.
func (rf *recordFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&rf.animal, "animal", "", "subject animal (id, EID, or tag)")
	cmd.Flags().StringVar(&rf.mob, "mob", "", "subject mob id")
	cmd.Flags().StringVar(&rf.date, "date", "", "date the event occurred (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&rf.note, "note", "", "free-form note")
	cmd.Flags().StringVar(&rf.by, "by", "", "who recorded this")
}

// input builds the common RecordEventInput fields.
func (rf *recordFlags) input(eventType domain.EventType) (app.RecordEventInput, error) {
	occurred, err := parseDatePtr(rf.date)
	if err != nil {
		return app.RecordEventInput{}, fmt.Errorf("parse --date: %w", err)
	}
	in := app.RecordEventInput{
		Type:       eventType,
		AnimalRef:  rf.animal,
		MobID:      rf.mob,
		Note:       rf.note,
		RecordedBy: rf.by,
	}
	if occurred != nil {
		in.OccurredAt = *occurred
	}
	return in, nil
}

// newRecordCmd builds the requested command.
func newRecordCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Append ledger events",
	}

	record := func(cmd *cobra.Command, build func() (app.RecordEventInput, error)) error {
		return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
			in, err := build()
			if err != nil {
				return err
			}
			ev, err := svc.RecordEvent(ctx, in)
			if err != nil {
				return fmt.Errorf("record %s event: %w", in.Type, err)
			}
			env.logger.Info("event appended", "type", ev.Type, "id", ev.ID, "seq", ev.Seq)
			fmt.Fprintf(env.stdout, "recorded %s event %s (seq %d)\n", ev.Type, ev.ID, ev.Seq)
			return nil
		})
	}

	var moveFlags recordFlags
	var movePayload domain.MovementPayload
	move := &cobra.Command{
		Use:   "move",
		Short: "Move an animal to a mob, or a mob to a paddock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := moveFlags.input(domain.EventMovement)
				if err != nil {
					return in, err
				}
				p := movePayload
				in.Movement = &p
				return in, nil
			})
		},
	}
	moveFlags.bind(move)
	move.Flags().StringVar(&movePayload.ToMobID, "to-mob", "", "destination mob id (animal movement)")
	move.Flags().StringVar(&movePayload.ToPaddockID, "to-paddock", "", "destination paddock id (mob movement)")
	move.Flags().StringVar(&movePayload.Reason, "reason", "", "reason for the move")
	move.Flags().IntVar(&movePayload.HeadCount, "head", 0, "head moved (mob movement)")

	var treatFlags recordFlags
	var treatPayload domain.TreatmentPayload
	treat := &cobra.Command{
		Use:   "treat",
		Short: "Record a chemical treatment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := treatFlags.input(domain.EventTreatment)
				if err != nil {
					return in, err
				}
				p := treatPayload
				in.Treatment = &p
				return in, nil
			})
		},
	}
	treatFlags.bind(treat)
	treat.Flags().StringVar(&treatPayload.ProductID, "product", "", "product id")
	treat.Flags().StringVar(&treatPayload.Dose, "dose", "", "dose administered")
	treat.Flags().StringVar(&treatPayload.BatchNumber, "batch", "", "product batch number")
	treat.Flags().StringVar((*string)(&treatPayload.Route), "route", "", "route (oral|injection|pour_on|intramammary|topical)")
	treat.Flags().StringVar(&treatPayload.AdministeredBy, "administered-by", "", "who administered the treatment")
	_ = treat.MarkFlagRequired("product")

	var weighFlags recordFlags
	var weightKg, conditionScore float64
	weigh := &cobra.Command{
		Use:   "weigh",
		Short: "Record a live weight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := weighFlags.input(domain.EventWeigh)
				if err != nil {
					return in, err
				}
				p := domain.WeighPayload{WeightKg: weightKg}
				if cmd.Flags().Changed("score") {
					score := conditionScore
					p.ConditionScore = &score
				}
				in.Weigh = &p
				return in, nil
			})
		},
	}
	weighFlags.bind(weigh)
	weigh.Flags().Float64Var(&weightKg, "kg", 0, "weight in kilograms")
	weigh.Flags().Float64Var(&conditionScore, "score", 0, "body condition score")
	_ = weigh.MarkFlagRequired("kg")

	var deathFlags recordFlags
	var deathPayload domain.DeathPayload
	death := &cobra.Command{
		Use:   "death",
		Short: "Record a death",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := deathFlags.input(domain.EventDeath)
				if err != nil {
					return in, err
				}
				p := deathPayload
				in.Death = &p
				return in, nil
			})
		},
	}
	deathFlags.bind(death)
	death.Flags().StringVar(&deathPayload.Cause, "cause", "", "cause of death")
	death.Flags().StringVar(&deathPayload.Disposal, "disposal", "", "carcass disposal")

	var saleFlags recordFlags
	var salePayload domain.SalePayload
	sale := &cobra.Command{
		Use:   "sale",
		Short: "Record a sale",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := saleFlags.input(domain.EventSale)
				if err != nil {
					return in, err
				}
				p := salePayload
				in.Sale = &p
				return in, nil
			})
		},
	}
	saleFlags.bind(sale)
	sale.Flags().Int64Var(&salePayload.PriceCents, "price-cents", 0, "sale price in cents")
	sale.Flags().StringVar(&salePayload.Buyer, "buyer", "", "buyer")

	var pregFlags recordFlags
	var pregPayload domain.PregnancyTestPayload
	pregTest := &cobra.Command{
		Use:   "preg-test",
		Short: "Record a pregnancy test result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := pregFlags.input(domain.EventPregnancyTest)
				if err != nil {
					return in, err
				}
				p := pregPayload
				in.PregnancyTest = &p
				return in, nil
			})
		},
	}
	pregFlags.bind(pregTest)
	pregTest.Flags().StringVar((*string)(&pregPayload.Result), "result", "", "result (pregnant|empty)")
	pregTest.Flags().StringVar(&pregPayload.Tester, "tester", "", "who ran the test")
	_ = pregTest.MarkFlagRequired("result")

	var joinFlags recordFlags
	var joinPayload domain.JoiningPayload
	join := &cobra.Command{
		Use:   "join",
		Short: "Record a mob joining",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := joinFlags.input(domain.EventJoining)
				if err != nil {
					return in, err
				}
				p := joinPayload
				in.Joining = &p
				return in, nil
			})
		},
	}
	joinFlags.bind(join)
	join.Flags().StringVar(&joinPayload.SireMobID, "sire-mob", "", "sire mob id")
	join.Flags().StringVar(&joinPayload.SireIDs, "sires", "", "sire animal ids")

	var statusFlags recordFlags
	var toStatus string
	status := &cobra.Command{
		Use:   "status",
		Short: "Flip an animal between active and missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := statusFlags.input(domain.EventStatusChange)
				if err != nil {
					return in, err
				}
				in.StatusChange = &domain.StatusChangePayload{Status: domain.AnimalStatus(toStatus)}
				return in, nil
			})
		},
	}
	statusFlags.bind(status)
	status.Flags().StringVar(&toStatus, "to", "", "new status (active|missing)")
	_ = status.MarkFlagRequired("to")

	var noteFlags recordFlags
	note := &cobra.Command{
		Use:   "note <text>",
		Short: "Record a free-form note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(cmd, func() (app.RecordEventInput, error) {
				in, err := noteFlags.input(domain.EventNote)
				if err != nil {
					return in, err
				}
				in.Note = args[0]
				return in, nil
			})
		},
	}
	noteFlags.bind(note)

	cmd.AddCommand(move, treat, weigh, death, sale, pregTest, join, status, note)
	return cmd
}

// newLedgerCmd builds the requested command.
func newLedgerCmd(env *cliEnv) *cobra.Command {
	var (
		animal    string
		mob       string
		eventType string
		from, to  string
		limit     int
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List ledger events in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				filter := app.EventFilter{MobID: mob, Limit: limit}
				if animal != "" {
					a, err := svc.ResolveAnimal(ctx, animal)
					if err != nil {
						return fmt.Errorf("resolve animal %q: %w", animal, err)
					}
					filter.AnimalID = a.ID
				}
				if eventType != "" {
					filter.Types = []domain.EventType{domain.EventType(eventType)}
				}
				var err error
				if filter.From, err = parseDatePtr(from); err != nil {
					return fmt.Errorf("parse --from: %w", err)
				}
				if filter.To, err = parseDatePtr(to); err != nil {
					return fmt.Errorf("parse --to: %w", err)
				}
				events, err := svc.QueryEvents(ctx, filter)
				if err != nil {
					return fmt.Errorf("query events: %w", err)
				}
				if asJSON {
					return printJSON(env.stdout, events)
				}
				tw := newTable(env.stdout)
				fmt.Fprintln(tw, "SEQ\tDATE\tTYPE\tANIMAL\tMOB\tNOTE")
				for _, ev := range events {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
						ev.Seq, ev.OccurredAt.Format("2006-01-02"), ev.Type, ev.AnimalID, ev.MobID, ev.Note)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&animal, "animal", "", "filter by animal (id, EID, or tag)")
	cmd.Flags().StringVar(&mob, "mob", "", "filter by mob id")
	cmd.Flags().StringVar(&eventType, "type", "", "filter by event type")
	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum events to return")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

// newWHPCmd builds the requested command.
func newWHPCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whp",
		Short: "Withholding period status",
	}

	var asOfStatus string
	status := &cobra.Command{
		Use:   "status <id|eid|tag>",
		Short: "Show an animal's withholding status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				asOf, err := parseDateOrNow(asOfStatus)
				if err != nil {
					return fmt.Errorf("parse --as-of: %w", err)
				}
				st, err := svc.AnimalWHPStatus(ctx, args[0], asOf)
				if err != nil {
					return fmt.Errorf("withholding status for %q: %w", args[0], err)
				}
				return printJSON(env.stdout, st)
			})
		},
	}
	status.Flags().StringVar(&asOfStatus, "as-of", "", "evaluation date (YYYY-MM-DD, default today)")

	var asOfList string
	list := &cobra.Command{
		Use:   "list",
		Short: "List animals under a withholding period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				asOf, err := parseDateOrNow(asOfList)
				if err != nil {
					return fmt.Errorf("parse --as-of: %w", err)
				}
				held, err := svc.ListUnderWHP(ctx, asOf)
				if err != nil {
					return fmt.Errorf("list animals under withholding: %w", err)
				}
				tw := newTable(env.stdout)
				fmt.Fprintln(tw, "ANIMAL\tCLEAR_DATE\tHOLDS")
				for _, st := range held {
					clear := ""
					if st.ClearDate != nil {
						clear = st.ClearDate.Format("2006-01-02")
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\n", st.Animal.DisplayID(), clear, len(st.Holds))
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&asOfList, "as-of", "", "evaluation date (YYYY-MM-DD, default today)")

	cmd.AddCommand(status, list)
	return cmd
}

// newTasksCmd builds the requested command.
func newTasksCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Review and resolve open tasks",
	}

	var dueBefore string
	list := &cobra.Command{
		Use:   "list",
		Short: "List open tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				due, err := parseDatePtr(dueBefore)
				if err != nil {
					return fmt.Errorf("parse --due-before: %w", err)
				}
				tasks, err := svc.ListOpenTasks(ctx, due)
				if err != nil {
					return fmt.Errorf("list open tasks: %w", err)
				}
				tw := newTable(env.stdout)
				fmt.Fprintln(tw, "ID\tKIND\tDUE\tTITLE")
				for _, t := range tasks {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.ID, t.Kind, t.DueAt.Format("2006-01-02"), t.Title)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&dueBefore, "due-before", "", "only tasks due before this date (YYYY-MM-DD)")

	done := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				t, err := svc.CompleteTask(ctx, args[0])
				if err != nil {
					return fmt.Errorf("complete task %q: %w", args[0], err)
				}
				fmt.Fprintf(env.stdout, "done: %s\n", t.Title)
				return nil
			})
		},
	}

	dismiss := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				t, err := svc.DismissTask(ctx, args[0])
				if err != nil {
					return fmt.Errorf("dismiss task %q: %w", args[0], err)
				}
				fmt.Fprintf(env.stdout, "dismissed: %s\n", t.Title)
				return nil
			})
		},
	}

	cmd.AddCommand(list, done, dismiss)
	return cmd
}

// reportKinds maps CLI names onto report kinds.
var reportKinds = []app.ReportKind{
	app.ReportTreatmentRegister,
	app.ReportMovementLog,
	app.ReportWHPClearance,
	app.ReportSaleDraft,
	app.ReportInventory,
	app.ReportWeightSummary,
}

// newReportCmd builds the requested command.
func newReportCmd(env *cliEnv) *cobra.Command {
	var (
		asOf, from, to string
		asJSON         bool
	)
	valid := make([]string, 0, len(reportKinds))
	for _, kind := range reportKinds {
		valid = append(valid, string(kind))
	}
	cmd := &cobra.Command{
		Use:       "report <kind>",
		Short:     "Generate a report (" + strings.Join(valid, ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: valid,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				var params app.ReportParams
				var err error
				if params.AsOf, err = parseDateOrNow(asOf); err != nil {
					return fmt.Errorf("parse --as-of: %w", err)
				}
				if params.From, err = parseDatePtr(from); err != nil {
					return fmt.Errorf("parse --from: %w", err)
				}
				if params.To, err = parseDatePtr(to); err != nil {
					return fmt.Errorf("parse --to: %w", err)
				}
				dataset, err := svc.GenerateReport(ctx, app.ReportKind(args[0]), params)
				if err != nil {
					return fmt.Errorf("generate %s report: %w", args[0], err)
				}
				if asJSON {
					return printJSON(env.stdout, dataset)
				}
				return renderReport(env.stdout, dataset)
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluation date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&from, "from", "", "period start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "period end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	return cmd
}

// newExportCmd builds the requested command.
func newExportCmd(env *cliEnv) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full store as a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				snap, err := svc.ExportSnapshot(ctx)
				if err != nil {
					return fmt.Errorf("export snapshot: %w", err)
				}
				encoded, err := json.MarshalIndent(snap, "", "  ")
				if err != nil {
					return fmt.Errorf("encode snapshot json: %w", err)
				}
				encoded = append(encoded, '\n')
				if outPath == "-" {
					if _, err := env.stdout.Write(encoded); err != nil {
						return fmt.Errorf("write snapshot to stdout: %w", err)
					}
					return nil
				}
				if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return fmt.Errorf("create export output dir: %w", err)
				}
				if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
					return fmt.Errorf("write export file: %w", err)
				}
				env.logger.Info("snapshot exported", "path", outPath, "events", len(snap.Events))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

// newImportCmd builds the requested command.
func newImportCmd(env *cliEnv) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the store with a JSON snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				content, err := os.ReadFile(inPath)
				if err != nil {
					return fmt.Errorf("read import file: %w", err)
				}
				var snap app.Snapshot
				if err := json.Unmarshal(content, &snap); err != nil {
					return fmt.Errorf("decode snapshot json: %w", err)
				}
				if err := svc.ImportSnapshot(ctx, snap); err != nil {
					return fmt.Errorf("import snapshot: %w", err)
				}
				env.logger.Info("snapshot imported", "path", inPath, "events", len(snap.Events))
				fmt.Fprintf(env.stdout, "imported %d events\n", len(snap.Events))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// newBackupCmd builds the requested command.
func newBackupCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [dst]",
		Short: "Copy the database file to a backup path (default: a dated file in the backups dir)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				var dst string
				if len(args) == 1 {
					dst = args[0]
				} else {
					if err := os.MkdirAll(env.paths.BackupsDir, 0o755); err != nil {
						return fmt.Errorf("create backups dir: %w", err)
					}
					name := fmt.Sprintf("%s-%s.db", env.appName, time.Now().UTC().Format("20060102-150405"))
					dst = filepath.Join(env.paths.BackupsDir, name)
				}
				if err := svc.CreateBackup(ctx, dst); err != nil {
					return fmt.Errorf("create backup: %w", err)
				}
				env.logger.Info("backup written", "path", dst)
				fmt.Fprintf(env.stdout, "backup written to %s\n", dst)
				return nil
			})
		},
	}
}

// newRestoreCmd builds the requested command.
func newRestoreCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <src>",
		Short: "Restore the database from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				if err := svc.RestoreBackup(ctx, args[0]); err != nil {
					return fmt.Errorf("restore backup: %w", err)
				}
				env.logger.Info("backup restored", "path", args[0])
				fmt.Fprintf(env.stdout, "restored from %s\n", args[0])
				return nil
			})
		},
	}
}

// newVerifyCmd builds the requested command.
func newVerifyCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the registry matches a full ledger replay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				divergences, err := svc.VerifyConsistency(ctx)
				if err != nil {
					for _, d := range divergences {
						fmt.Fprintf(env.stdout, "divergence: %s\n", d)
					}
					return fmt.Errorf("verify consistency: %w", err)
				}
				fmt.Fprintln(env.stdout, "registry matches ledger replay")
				return nil
			})
		},
	}
}

// newRebuildCmd builds the requested command.
func newRebuildCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the registry from a full ledger replay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.withService(cmd, func(ctx context.Context, svc *app.Service) error {
				if err := svc.RebuildRegistry(ctx); err != nil {
					return fmt.Errorf("rebuild registry: %w", err)
				}
				env.logger.Info("registry rebuilt from ledger")
				fmt.Fprintln(env.stdout, "registry rebuilt from ledger")
				return nil
			})
		},
	}
}

// renderReport writes a dataset as an aligned table with footer lines.
func renderReport(w io.Writer, dataset app.ReportDataset) error {
	fmt.Fprintf(w, "%s (as of %s)\n", dataset.Title, dataset.AsOf.Format("02/01/2006"))
	tw := newTable(w)
	fmt.Fprintln(tw, strings.Join(dataset.Columns, "\t"))
	for _, row := range dataset.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, line := range dataset.Summary {
		fmt.Fprintln(w, line)
	}
	return nil
}

// newTable handles new table.
func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

// printJSON handles print json.
func printJSON(w io.Writer, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	encoded = append(encoded, '\n')
	_, err = w.Write(encoded)
	return err
}

const dateLayout = "2006-01-02"

// parseDatePtr parses an optional YYYY-MM-DD or RFC 3339 value.
func parseDatePtr(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(dateLayout, raw); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", raw)
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

// parseDateOrNow parses an optional date, defaulting to the current time.
func parseDateOrNow(raw string) (time.Time, error) {
	parsed, err := parseDatePtr(raw)
	if err != nil {
		return time.Time{}, err
	}
	if parsed == nil {
		return time.Now().UTC(), nil
	}
	return *parsed, nil
}
