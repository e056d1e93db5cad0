// Command llmrelay is the gateway's CLI and HTTP entrypoint. Grounded on
// original_source/src/main.rs for the verb set (generate, add-service,
// remove-service, list-services, status, list-models, adopt-model,
// refresh-models, init) and on cmd/api-gateway/main.go for the Go
// server-loop shape.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/dnovak/llmrelay/config"
	"github.com/dnovak/llmrelay/internal/app"
	"github.com/dnovak/llmrelay/internal/domain"
)

func main() {
	if len(os.Args) < 2 {
		runServe()
		return
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "serve", "run":
		runServe()
	case "generate":
		exitOn(cmdGenerate(ctx, args))
	case "add-service":
		exitOn(cmdAddService(ctx, args))
	case "remove-service":
		exitOn(cmdRemoveService(ctx, args))
	case "list-services":
		exitOn(cmdListServices(ctx, args))
	case "status":
		exitOn(cmdStatus(ctx, args))
	case "list-models":
		exitOn(cmdListModels(ctx, args))
	case "adopt-model":
		exitOn(cmdAdoptModel(ctx, args))
	case "refresh-models":
		exitOn(cmdRefreshModels(ctx, args))
	case "init":
		exitOn(cmdInit(ctx, args))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "llmrelay: unknown command %q\n", cmd)
		printUsage()
		os.Exit(2)
	}
}

// exitOn maps a cmd error to the process exit code: 2 for bad input, 1
// for every other failure, 0 on success.
func exitOn(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "llmrelay: %v\n", err)
	if domain.IsInvalidRequestError(err) {
		os.Exit(2)
	}
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`llmrelay - multi-provider generative-AI gateway

Usage:
  llmrelay                          start the HTTP server
  llmrelay generate [flags]         produce a completion
  llmrelay add-service <provider>   store an encrypted API key
  llmrelay remove-service <provider>
  llmrelay list-services
  llmrelay status [--provider P]
  llmrelay list-models [--provider P] [--workload W] [--include-suggestions]
  llmrelay adopt-model <provider> <model> [--workload W] [--priority N]
  llmrelay refresh-models [--provider P] [--workload W] [--dry-run]
  llmrelay init                     interactive credential setup`)
}

func loadApp(ctx context.Context) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.New(ctx, cfg)
}

func runServe() {
	ctx := context.Background()
	deps, err := loadApp(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llmrelay: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              deps.Config.Server.Address(),
		Handler:           deps.Handler.Routes(),
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		deps.Logger.Sugar().Infof("llmrelay listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Sugar().Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		deps.Logger.Sugar().Warnf("graceful shutdown failed: %v", err)
	}
}

// --- generate ---------------------------------------------------------

func cmdGenerate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	prompt := fs.String("prompt", "", "prompt text (reads stdin if omitted and no --prompt-file)")
	promptFile := fs.String("prompt-file", "", "read the prompt from a file")
	outputFile := fs.String("output-file", "", "write the response to a file instead of stdout")
	var contextFiles stringList
	fs.Var(&contextFiles, "context-file", "append a file's content as context (repeatable)")
	forceProvider := fs.String("force-provider", "", "force a specific provider")
	forceModel := fs.String("force-model", "", "force a specific model")
	workload := fs.String("workload", "chat", "workload tag")
	quality := fs.String("quality", "", "quality hint: standard|premium")
	complexity := fs.String("complexity", "", "complexity hint: low|high")
	speed := fs.String("speed", "", "speed hint: normal|fast")
	format := fs.String("format", "text", "output format: text|markdown|json")
	emitMetadata := fs.Bool("emit-metadata", false, "print a metadata line after the response")
	verbose := fs.Bool("verbose", false, "print provider metadata before the response")
	if err := fs.Parse(args); err != nil {
		return domain.ErrInvalidRequest.WithDetail("cause", err.Error())
	}

	promptText, err := resolvePrompt(*prompt, *promptFile)
	if err != nil {
		return err
	}
	if strings.TrimSpace(promptText) == "" {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, "prompt cannot be empty", nil)
	}

	if len(contextFiles) > 0 {
		var blocks []string
		for i, path := range contextFiles {
			content, err := os.ReadFile(path)
			if err != nil {
				return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("failed to read context file %s", path), err)
			}
			blocks = append(blocks, fmt.Sprintf("Context %d:\n%s", i+1, content))
		}
		promptText = strings.Join(blocks, "\n\n") + "\n\n" + promptText
	}

	w, ok := domain.WorkloadFromKey(*workload)
	if !ok {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown workload %q", *workload), nil)
	}

	req := domain.Request{
		Prompt:   promptText,
		Workload: w,
		Hints: domain.Hints{
			Model:      *forceModel,
			Quality:    *quality,
			Complexity: *complexity,
			Speed:      *speed,
		},
	}
	if *forceProvider != "" {
		p, ok := domain.ProviderFromAlias(*forceProvider)
		if !ok {
			return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown provider %q", *forceProvider), nil)
		}
		req.Hints.Provider = p
	}

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	resp, err := deps.Router.Generate(ctx, req)
	if err != nil {
		return err
	}

	var out string
	switch *format {
	case "json":
		payload, err := json.MarshalIndent(map[string]string{
			"provider": string(resp.Provider),
			"content":  resp.Content,
		}, "", "  ")
		if err != nil {
			return err
		}
		out = string(payload)
	default:
		out = resp.Content
	}

	if *verbose && *format != "json" {
		fmt.Fprintln(os.Stderr, "=== Metadata ===")
		fmt.Fprintf(os.Stderr, "Provider: %s\nModel: %s\n", resp.Provider, resp.Model)
		fmt.Fprintln(os.Stderr, "\n=== Response ===")
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(out), 0o644); err != nil {
			return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("failed to write output file %s", *outputFile), err)
		}
	} else {
		fmt.Println(out)
	}

	if *emitMetadata && *format != "json" {
		payload, err := json.Marshal(map[string]string{"provider": string(resp.Provider), "model": resp.Model})
		if err != nil {
			return err
		}
		fmt.Println(string(payload))
	}
	return nil
}

func resolvePrompt(prompt, promptFile string) (string, error) {
	if prompt != "" {
		return prompt, nil
	}
	if promptFile != "" {
		content, err := os.ReadFile(promptFile)
		if err != nil {
			return "", domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("failed to read prompt file %s", promptFile), err)
		}
		return string(content), nil
	}
	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", domain.NewDomainError(domain.ErrorTypeInvalidRequest, "failed to read stdin", err)
	}
	return string(content), nil
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// --- credential admin ---------------------------------------------------

func cmdAddService(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, "add-service requires a provider argument", nil)
	}
	provider, ok := domain.ProviderFromAlias(args[0])
	if !ok {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown provider %q", args[0]), nil)
	}

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	token, err := readHiddenInput(fmt.Sprintf("Enter %s API key (input hidden): ", provider))
	if err != nil {
		return err
	}
	if token == "" {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, "API key cannot be empty", nil)
	}

	if err := deps.Credentials.Put(ctx, provider, token, ""); err != nil {
		return err
	}
	fmt.Printf("%s API key saved. It is stored encrypted on disk.\n", provider)
	return nil
}

func cmdRemoveService(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, "remove-service requires a provider argument", nil)
	}
	provider, ok := domain.ProviderFromAlias(args[0])
	if !ok {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown provider %q", args[0]), nil)
	}

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	removed, err := deps.Credentials.Remove(ctx, provider)
	if err != nil {
		return err
	}
	if removed {
		fmt.Printf("Removed %s API key from local store.\n", provider)
	} else {
		fmt.Printf("No stored API key found for %s.\n", provider)
	}
	return nil
}

func cmdListServices(ctx context.Context, args []string) error {
	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	stored, err := deps.Credentials.StoredProviders(ctx)
	if err != nil {
		return err
	}
	storedSet := make(map[domain.Provider]bool, len(stored))
	for _, p := range stored {
		storedSet[p] = true
	}

	fmt.Println("Provider       Configured")
	fmt.Println("---------------------------")
	for _, p := range domain.AllProviders() {
		configured := "no"
		if storedSet[p] {
			configured = "yes"
		}
		fmt.Printf("%-14s %s\n", p, configured)
	}
	return nil
}

func readHiddenInput(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", domain.NewDomainError(domain.ErrorTypeInvalidRequest, "failed to read input", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", domain.NewDomainError(domain.ErrorTypeInvalidRequest, "failed to read input", err)
	}
	return strings.TrimSpace(line), nil
}

// --- status / catalog ---------------------------------------------------

func cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	providerFlag := fs.String("provider", "", "limit to a single provider")
	if err := fs.Parse(args); err != nil {
		return domain.ErrInvalidRequest
	}

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	providers := domain.AllProviders()
	if *providerFlag != "" {
		p, ok := domain.ProviderFromAlias(*providerFlag)
		if !ok {
			return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown provider %q", *providerFlag), nil)
		}
		providers = []domain.Provider{p}
	}

	for _, p := range providers {
		h, err := deps.Health.Snapshot(ctx, p)
		if err != nil {
			return err
		}
		fmt.Printf("\n=== %s: %s ===\n", strings.ToUpper(string(p)), strings.ToUpper(string(h.Status)))
		if h.Status != domain.HealthAvailable {
			if h.LastErrorMessage != "" {
				fmt.Printf("    Last error: %s (%s)\n", h.LastErrorMessage, h.LastError)
			}
			if !h.RetryAfter.IsZero() && h.RetryAfter.After(time.Now()) {
				fmt.Printf("    Retry after: %s\n", h.RetryAfter.Format(time.Kitchen))
			}
			if h.ConsecutiveFailures > 0 {
				fmt.Printf("    Consecutive failures: %d\n", h.ConsecutiveFailures)
			}
		}
	}
	return nil
}

func cmdListModels(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list-models", flag.ContinueOnError)
	providerFlag := fs.String("provider", "", "limit to a single provider")
	workloadFlag := fs.String("workload", "", "limit to a single workload")
	includeSuggestions := fs.Bool("include-suggestions", false, "also list pending suggestions")
	if err := fs.Parse(args); err != nil {
		return domain.ErrInvalidRequest
	}

	var provider *domain.Provider
	if *providerFlag != "" {
		p, ok := domain.ProviderFromAlias(*providerFlag)
		if !ok {
			return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown provider %q", *providerFlag), nil)
		}
		provider = &p
	}
	var workload *domain.Workload
	if *workloadFlag != "" {
		w, ok := domain.WorkloadFromKey(*workloadFlag)
		if !ok {
			return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown workload %q", *workloadFlag), nil)
		}
		workload = &w
	}

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	models, err := deps.Catalog.ListModels(ctx, provider, workload)
	if err != nil {
		return err
	}

	type group struct {
		models      []domain.CatalogEntry
		suggestions []domain.Suggestion
	}
	groups := make(map[string]*group)
	key := func(p domain.Provider, w domain.Workload) string { return string(p) + "/" + string(w) }
	order := []string{}
	for _, m := range models {
		k := key(m.Provider, m.Workload)
		if groups[k] == nil {
			groups[k] = &group{}
			order = append(order, k)
		}
		groups[k].models = append(groups[k].models, m)
	}

	if *includeSuggestions {
		suggestions, err := deps.Catalog.Suggestions(ctx, provider, workload, nil)
		if err != nil {
			return err
		}
		for _, s := range suggestions {
			k := key(s.Provider, s.Workload)
			if groups[k] == nil {
				groups[k] = &group{}
				order = append(order, k)
			}
			groups[k].suggestions = append(groups[k].suggestions, s)
		}
	}

	sort.Strings(order)
	for _, k := range order {
		g := groups[k]
		fmt.Printf("\n%s\n", k)
		for _, m := range g.models {
			fmt.Printf("  %3d  %-30s %s\n", m.Priority, m.Model, m.Rationale)
		}
		for _, s := range g.suggestions {
			fmt.Printf("  [%s]  %-30s %s\n", s.Status, s.Model, s.Rationale)
		}
	}
	return nil
}

func cmdAdoptModel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("adopt-model", flag.ContinueOnError)
	workloadFlag := fs.String("workload", "chat", "workload tag")
	priority := fs.Int("priority", 50, "priority (lower runs first)")
	if err := fs.Parse(args); err != nil {
		return domain.ErrInvalidRequest
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, "adopt-model requires <provider> <model>", nil)
	}
	provider, ok := domain.ProviderFromAlias(rest[0])
	if !ok {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown provider %q", rest[0]), nil)
	}
	workload, ok := domain.WorkloadFromKey(*workloadFlag)
	if !ok {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown workload %q", *workloadFlag), nil)
	}
	model := rest[1]

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.Catalog.Adopt(ctx, provider, workload, model, *priority, ""); err != nil {
		return err
	}
	fmt.Printf("Adopted %q for %s/%s at priority %d\n", model, provider, workload, *priority)

	active, err := deps.Catalog.Active(ctx, provider, workload)
	if err != nil {
		return err
	}
	fmt.Printf("\nActive models for %s/%s:\n", provider, workload)
	for _, m := range active {
		fmt.Printf("  %3d  %-30s %s\n", m.Priority, m.Model, m.Rationale)
	}
	return nil
}

func cmdRefreshModels(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh-models", flag.ContinueOnError)
	providerFlag := fs.String("provider", "", "provider to refresh")
	workloadFlag := fs.String("workload", "", "workload to refresh")
	dryRun := fs.Bool("dry-run", false, "evaluate suggestions without persisting them")
	if err := fs.Parse(args); err != nil {
		return domain.ErrInvalidRequest
	}
	if *providerFlag == "" || *workloadFlag == "" {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, "refresh-models requires --provider and --workload", nil)
	}
	provider, ok := domain.ProviderFromAlias(*providerFlag)
	if !ok {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown provider %q", *providerFlag), nil)
	}
	workload, ok := domain.WorkloadFromKey(*workloadFlag)
	if !ok {
		return domain.NewDomainError(domain.ErrorTypeInvalidRequest, fmt.Sprintf("unknown workload %q", *workloadFlag), nil)
	}

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	result, err := deps.Refresher.Run(ctx, provider, workload, *dryRun)
	if err != nil {
		return err
	}

	fmt.Printf("Valid suggestions: %d\n", len(result.Valid))
	for _, s := range result.Valid {
		fmt.Printf("  %-30s %s\n", s.Model, s.Rationale)
	}
	if len(result.Rejected) > 0 {
		fmt.Printf("Rejected: %d\n", len(result.Rejected))
		for _, r := range result.Rejected {
			fmt.Printf("  %-30s %s: %s\n", r.Model, r.Workload, r.Reason)
		}
	}
	if *dryRun {
		fmt.Println("Dry run: no suggestions were persisted.")
	} else if result.Inserted {
		fmt.Println("Suggestions persisted to the catalog.")
	}
	return nil
}

// --- init ---------------------------------------------------------------

// initProviderInfo describes a provider's setup step, grounded on
// original_source/src/main.rs::handle_init's descriptive table.
type initProviderInfo struct {
	provider    domain.Provider
	description string
	signupURL   string
}

var initProviders = []initProviderInfo{
	{domain.ProviderGroq, "ultra-fast inference, generous free tier", "https://console.groq.com/keys"},
	{domain.ProviderDeepSeek, "unlimited free tier with strong reasoning", "https://platform.deepseek.com/api_keys"},
	{domain.ProviderTogether, "small deposit then free models available", "https://api.together.xyz/settings/api-keys"},
	{domain.ProviderGoogle, "generous per-minute free quota", "https://makersuite.google.com/app/apikey"},
	{domain.ProviderHuggingFace, "rate-limited serverless inference API", "https://huggingface.co/settings/tokens"},
	{domain.ProviderOpenAI, "pay-as-you-go, no free tier", "https://platform.openai.com/api-keys"},
	{domain.ProviderAnthropic, "pay-as-you-go with limited free credits", "https://console.anthropic.com/"},
	{domain.ProviderCohere, "free tier for experimentation", "https://dashboard.cohere.com/api-keys"},
}

func cmdInit(ctx context.Context, args []string) error {
	fmt.Println("=== llmrelay provider setup ===")
	fmt.Println("Configure upstream providers with encrypted credential storage.")
	fmt.Println("Press Enter without typing a key to skip a provider.")

	deps, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	stored, err := deps.Credentials.StoredProviders(ctx)
	if err != nil {
		return err
	}
	storedSet := make(map[domain.Provider]bool, len(stored))
	for _, p := range stored {
		storedSet[p] = true
	}

	configured := 0
	for _, info := range initProviders {
		if storedSet[info.provider] {
			fmt.Printf("%-14s already configured\n", info.provider)
			configured++
			continue
		}
		fmt.Printf("\n--- %s ---\n", info.provider)
		fmt.Printf("%s\nSign up: %s\n", info.description, info.signupURL)

		token, err := readHiddenInput(fmt.Sprintf("Enter %s API key (or press Enter to skip): ", info.provider))
		if err != nil {
			return err
		}
		if token == "" {
			fmt.Println("  skipped")
			continue
		}
		if err := deps.Credentials.Put(ctx, info.provider, token, ""); err != nil {
			return err
		}
		fmt.Println("  saved")
		configured++
	}

	fmt.Printf("\nConfigured %d provider(s).\n", configured)
	fmt.Println("Run 'llmrelay list-services' to verify, or 'llmrelay status' to check health.")
	return nil
}
