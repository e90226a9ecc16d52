package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/yapi2zod/internal/config"
	"github.com/mark3labs/yapi2zod/internal/emitter/tsemitter"
	"github.com/mark3labs/yapi2zod/internal/generator"
	"github.com/mark3labs/yapi2zod/internal/openapi"
	"github.com/mark3labs/yapi2zod/internal/store"
	"github.com/mark3labs/yapi2zod/internal/yapi"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, environment and CLI overrides.
type GenerateConfig struct {
	Settings    *config.Config
	Refs        []yapi.Ref
	OpenAPI     string
	IncludeTags []string
	ExcludeTags []string
	Stdout      bool
	NoHistory   bool
	Verbose     bool

	Out    io.Writer
	Logger zerolog.Logger
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [interface-id | interface-url]...",
		Short: "Generate zod files for YAPI interfaces or an OpenAPI document",
		Long: "Generate one TypeScript file per endpoint. Endpoints are YAPI interface ids or " +
			"documentation URLs, or every operation of a Swagger/OpenAPI document given with --openapi.",
		Example: strings.TrimSpace(`  yapi2zod generate 345 https://yapi.example.com/project/12/interface/api/346
  yapi2zod generate --openapi ./openapi.yaml --include-tags pets --out ./src/api --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd, args)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("openapi", "", "Path or URL of a Swagger/OpenAPI document to import instead of YAPI")
	flags.StringSlice("include-tags", nil, "With --openapi, only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "With --openapi, exclude operations with these tags")
	flags.String("server", "", "YAPI server URL")
	flags.String("out", "", "Output directory (defaults to the current directory)")
	flags.Int("concurrency", 0, "Endpoints processed in parallel")
	flags.Duration("timeout", 0, "HTTP timeout per request")
	flags.String("state-file", "", "SQLite file for the YAPI session and history")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing files")
	flags.Bool("stdout", false, "Print generated files instead of writing them")
	flags.Bool("no-history", false, "Do not record this run in the history")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command, args []string) (*GenerateConfig, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if err := applySettingsFlagOverrides(flags, settings); err != nil {
		return nil, err
	}

	cfg := &GenerateConfig{Settings: settings, Out: cmd.OutOrStdout()}
	if err := applyGenerateFlagOverrides(flags, cfg); err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(args))
	for _, arg := range args {
		ref, err := yapi.ParseRef(arg)
		if err != nil {
			return nil, newUsageError(fmt.Sprintf("generate: %v", err))
		}
		if _, dup := seen[ref.InterfaceID]; dup {
			continue
		}
		seen[ref.InterfaceID] = struct{}{}
		cfg.Refs = append(cfg.Refs, ref)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Logger = newLogger(cmd, settings, cfg.Verbose)
	return cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	if flags.Changed("openapi") {
		value, err := flags.GetString("openapi")
		if err != nil {
			return err
		}
		cfg.OpenAPI = strings.TrimSpace(value)
	}
	if flags.Changed("include-tags") {
		value, err := flags.GetStringSlice("include-tags")
		if err != nil {
			return err
		}
		cfg.IncludeTags = sanitizeTags(value)
	}
	if flags.Changed("exclude-tags") {
		value, err := flags.GetStringSlice("exclude-tags")
		if err != nil {
			return err
		}
		cfg.ExcludeTags = sanitizeTags(value)
	}
	if flags.Changed("stdout") {
		value, err := flags.GetBool("stdout")
		if err != nil {
			return err
		}
		cfg.Stdout = value
	}
	if flags.Changed("no-history") {
		value, err := flags.GetBool("no-history")
		if err != nil {
			return err
		}
		cfg.NoHistory = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}
	return nil
}

func (c *GenerateConfig) validate() error {
	switch {
	case c.OpenAPI == "" && len(c.Refs) == 0:
		return newUsageError("generate: pass at least one interface id or URL, or --openapi")
	case c.OpenAPI != "" && len(c.Refs) > 0:
		return newUsageError("generate: interface arguments cannot be combined with --openapi")
	case c.OpenAPI == "" && (len(c.IncludeTags) > 0 || len(c.ExcludeTags) > 0):
		return newUsageError("generate: --include-tags and --exclude-tags require --openapi")
	case c.OpenAPI == "" && c.Settings.Server == "":
		return newUsageError("generate: a YAPI server is required (set server in the config file, YAPI2ZOD_SERVER or --server)")
	}
	if overlap := intersect(c.IncludeTags, c.ExcludeTags); len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

// job is one endpoint to generate. fetch returns the descriptor and the
// project name passed to the request stub.
type job struct {
	label string
	id    int64
	fetch func(ctx context.Context) (*yapi.Endpoint, string, error)
}

type result struct {
	job
	path   string
	output *generator.Output
	status string
	err    error
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	log := cfg.Logger
	s := cfg.Settings
	warnUnknownKeys(log, s)

	opts := []generator.Option{
		generator.WithServer(s.Server),
		generator.WithLogger(log),
	}
	if cfg.OpenAPI != "" {
		// Imported operations often share a last path segment.
		opts = append(opts, generator.WithNamer(openapi.OperationName))
	}
	assembler, err := generator.NewAssembler(s.Project, opts...)
	if err != nil {
		return newUsageError(fmt.Sprintf("generate: %v", err))
	}

	// The store is optional: without it sessions are not reused and the
	// run is not recorded.
	var db *store.SQLite
	if cfg.OpenAPI == "" || !cfg.NoHistory {
		if db, err = openStore(ctx, s); err != nil {
			log.Warn().Err(err).Msg("state store unavailable")
			db = nil
		} else {
			defer db.Close()
		}
	}

	var jobs []job
	source := cfg.OpenAPI
	if cfg.OpenAPI != "" {
		jobs, err = openAPIJobs(ctx, cfg)
	} else {
		source = s.Server
		jobs, err = yapiJobs(ctx, cfg, db)
	}
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		log.Warn().Str("source", source).Msg("no endpoints to generate")
		return nil
	}

	results := make([]*result, len(jobs))
	var g errgroup.Group
	g.SetLimit(s.Concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = generateOne(ctx, assembler, j)
			return nil
		})
	}
	_ = g.Wait()

	if cfg.Stdout {
		printOutputs(cfg.Out, results)
	} else if err := emitOutputs(ctx, cfg, results); err != nil {
		return err
	}

	if db != nil && !cfg.NoHistory {
		recordHistory(ctx, log, db, source, results)
	}

	var errs []error
	for _, r := range results {
		if r.err != nil {
			log.Error().Err(r.err).Str("endpoint", r.label).Msg("generation failed")
			errs = append(errs, fmt.Errorf("%s: %w", r.label, r.err))
		}
	}
	return errors.Join(errs...)
}

func generateOne(ctx context.Context, assembler *generator.Assembler, j job) *result {
	r := &result{job: j, status: store.StatusFailed}
	ep, resource, err := j.fetch(ctx)
	if err != nil {
		r.err = err
		return r
	}
	r.id, r.path = ep.ID, ep.Path
	out, err := assembler.Assemble(ctx, ep, resource)
	if err != nil {
		r.err = err
		return r
	}
	r.output = out
	return r
}

func openAPIJobs(ctx context.Context, cfg *GenerateConfig) ([]job, error) {
	doc, err := openapi.Load(ctx, cfg.OpenAPI,
		openapi.WithHTTPTimeout(cfg.Settings.Timeout),
		openapi.WithLogger(cfg.Logger),
	)
	if err != nil {
		// Map structured load errors into friendly messages
		var le *openapi.LoadError
		if errors.As(err, &le) {
			msg := fmt.Sprintf("openapi: %s", le.Message)
			if le.Location != "" {
				msg = fmt.Sprintf("%s\nLocation: %s", msg, le.Location)
			}
			if le.JSONPointer != "" {
				msg = fmt.Sprintf("%s\nPointer: %s", msg, le.JSONPointer)
			}
			return nil, newUsageError(msg)
		}
		return nil, err
	}
	eps, err := openapi.Endpoints(doc,
		openapi.WithIncludeTags(cfg.IncludeTags),
		openapi.WithExcludeTags(cfg.ExcludeTags),
	)
	if err != nil {
		return nil, err
	}
	jobs := make([]job, 0, len(eps))
	for i := range eps {
		ep := &eps[i]
		jobs = append(jobs, job{
			label: ep.Method + " " + ep.Path,
			id:    ep.ID,
			fetch: func(context.Context) (*yapi.Endpoint, string, error) { return ep, "", nil },
		})
	}
	return jobs, nil
}

func yapiJobs(ctx context.Context, cfg *GenerateConfig, db *store.SQLite) ([]job, error) {
	s := cfg.Settings
	settings := yapi.DefaultSettings()
	settings.Server = s.Server
	settings.Email = s.Email
	settings.Password = s.Password
	settings.HTTPTimeout = s.Timeout
	settings.RateLimit = s.RateLimit

	opts := []yapi.Option{yapi.WithLogger(cfg.Logger)}
	if db != nil {
		opts = append(opts, yapi.WithSessionStore(db))
	}
	client, err := yapi.NewClient(settings, opts...)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("generate: %v", err))
	}

	projects := newProjectNames(ctx, client, cfg.Logger)
	jobs := make([]job, 0, len(cfg.Refs))
	for _, ref := range cfg.Refs {
		jobs = append(jobs, job{
			label: strconv.FormatInt(ref.InterfaceID, 10),
			id:    ref.InterfaceID,
			fetch: func(ctx context.Context) (*yapi.Endpoint, string, error) {
				return fetchEndpoint(ctx, client, projects, ref)
			},
		})
	}
	return jobs, nil
}

// fetchEndpoint loads the interface and, when the reference names its
// project, the project name in parallel.
func fetchEndpoint(ctx context.Context, client *yapi.Client, projects *projectNames, ref yapi.Ref) (*yapi.Endpoint, string, error) {
	var (
		ep       *yapi.Endpoint
		resource string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ep, err = client.Endpoint(gctx, ref.InterfaceID)
		return err
	})
	if ref.ProjectID > 0 {
		g.Go(func() error {
			resource = projects.name(ref.ProjectID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	if ep.ProjectID == 0 {
		ep.ProjectID = ref.ProjectID
	}
	return ep, resource, nil
}

// projectNames fetches each project at most once per run. A failed lookup
// only costs the resource name.
type projectNames struct {
	ctx    context.Context
	client *yapi.Client
	log    zerolog.Logger

	mu    sync.Mutex
	names map[int64]func() string
}

func newProjectNames(ctx context.Context, client *yapi.Client, log zerolog.Logger) *projectNames {
	return &projectNames{ctx: ctx, client: client, log: log, names: map[int64]func() string{}}
}

func (p *projectNames) name(id int64) string {
	p.mu.Lock()
	f, ok := p.names[id]
	if !ok {
		f = sync.OnceValue(func() string {
			project, err := p.client.Project(p.ctx, id)
			if err != nil {
				p.log.Warn().Err(err).Int64("project", id).Msg("project name unavailable")
				return ""
			}
			return project.Name
		})
		p.names[id] = f
	}
	p.mu.Unlock()
	return f()
}

func printOutputs(w io.Writer, results []*result) {
	for _, r := range results {
		if r.output == nil {
			continue
		}
		fmt.Fprintf(w, "// %s\n%s\n", r.output.FileName, r.output.Content())
		r.status = store.StatusPrinted
	}
}

func emitOutputs(ctx context.Context, cfg *GenerateConfig, results []*result) error {
	s := cfg.Settings
	outDir := s.Out
	if outDir == "" {
		outDir = "."
	}

	// Sources are result indexes; labels need not be unique.
	var files []tsemitter.File
	for i, r := range results {
		if r.output != nil {
			files = append(files, tsemitter.File{Name: r.output.FileName, Content: []byte(r.output.Content()), Source: strconv.Itoa(i)})
		}
	}
	if len(files) == 0 {
		return nil
	}

	res, err := tsemitter.Emit(ctx, files, tsemitter.Options{
		OutDir: outDir,
		Force:  s.Force,
		DryRun: s.DryRun,
		Logger: cfg.Logger,
	})
	if err != nil {
		return wrapOutputError(err, outDir)
	}

	planned := make(map[string]tsemitter.PlannedFile, len(res.Planned))
	for _, p := range res.Planned {
		planned[p.Source] = p
	}
	for i, r := range results {
		if r.output == nil {
			continue
		}
		key := strconv.Itoa(i)
		if ferr := res.Errors[key]; ferr != nil {
			r.err = ferr
			continue
		}
		p := planned[key]
		switch {
		case s.DryRun:
			r.status = store.StatusPlanned
		case p.Action == tsemitter.ActionSkip:
			r.status = store.StatusSkipped
			cfg.Logger.Info().Str("file", p.RelPath).Msg("file exists, skipped (use --force to overwrite)")
		default:
			r.status = store.StatusWritten
			cfg.Logger.Info().Str("file", p.RelPath).Str("endpoint", r.label).Msg("generated")
		}
	}

	if s.DryRun {
		paths := make([]string, 0, len(res.Planned))
		for _, p := range res.Planned {
			paths = append(paths, fmt.Sprintf("%s (%s)", p.RelPath, p.Action))
		}
		printPlan(cfg.Out, res.OutDir, len(res.Planned), paths)
	}
	return nil
}

func recordHistory(ctx context.Context, log zerolog.Logger, db *store.SQLite, source string, results []*result) {
	runID, err := db.RecordRun(ctx, source)
	if err != nil {
		log.Warn().Err(err).Msg("record history")
		return
	}
	for _, r := range results {
		e := store.Entry{RunID: runID, InterfaceID: r.id, Path: r.path, Status: r.status}
		if r.output != nil {
			e.File = r.output.FileName
		}
		if r.err != nil {
			e.Status = store.StatusFailed
			e.Error = r.err.Error()
		}
		if err := db.RecordEntry(ctx, e); err != nil {
			log.Warn().Err(err).Msg("record history")
			return
		}
	}
}

func printPlan(w io.Writer, outDir string, count int, relPaths []string) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(w, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "out dir") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out.", outDir, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}
