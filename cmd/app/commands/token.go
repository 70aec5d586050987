package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tokenDomain "github.com/alexfok/gate-controller/internal/token/domain"
	tokenUsecase "github.com/alexfok/gate-controller/internal/token/usecase"
)

// RunRegisterToken registers a new BLE token in the registry.
// The identifier is normalized before storage, so `AA:BB:CC:DD:EE:FF` and
// `aabbccddeeff` refer to the same token. Outputs the stored token in either
// text or JSON format.
func RunRegisterToken(
	ctx context.Context,
	tokenUseCase tokenUsecase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	name string,
	enabled bool,
	format string,
) error {
	logger.Info("registering token", slog.String("id", id), slog.String("name", name))

	token, err := tokenUseCase.Register(ctx, tokenUsecase.RegisterTokenInput{
		ID:      id,
		Name:    name,
		Enabled: &enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to register token: %w", err)
	}

	if format == "json" {
		outputTokenJSON(token, writer)
	} else {
		_, _ = fmt.Fprintln(writer, "Token registered successfully!")
		outputTokenText(token, writer)
	}

	return nil
}

// RunUpdateToken updates a registered token's name or enabled flag.
// Nil fields are left unchanged.
func RunUpdateToken(
	ctx context.Context,
	tokenUseCase tokenUsecase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
	name *string,
	enabled *bool,
	format string,
) error {
	logger.Info("updating token", slog.String("id", id))

	token, err := tokenUseCase.Update(ctx, tokenUsecase.UpdateTokenInput{
		ID:      id,
		Name:    name,
		Enabled: enabled,
	})
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}

	if format == "json" {
		outputTokenJSON(token, writer)
	} else {
		_, _ = fmt.Fprintln(writer, "Token updated successfully!")
		outputTokenText(token, writer)
	}

	return nil
}

// RunUnregisterToken removes a token from the registry.
func RunUnregisterToken(
	ctx context.Context,
	tokenUseCase tokenUsecase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	id string,
) error {
	logger.Info("unregistering token", slog.String("id", id))

	token, err := tokenUseCase.Unregister(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to unregister token: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Token %s (%s) unregistered.\n", token.ID, token.Name)
	return nil
}

// RunListTokens lists all registered tokens.
func RunListTokens(
	ctx context.Context,
	tokenUseCase tokenUsecase.UseCase,
	writer io.Writer,
	format string,
) error {
	tokens, err := tokenUseCase.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tokens: %w", err)
	}

	if format == "json" {
		results := make([]map[string]any, 0, len(tokens))
		for _, token := range tokens {
			results = append(results, tokenMap(token))
		}
		writeJSON(results, writer)
		return nil
	}

	if len(tokens) == 0 {
		_, _ = fmt.Fprintln(writer, "No tokens registered.")
		return nil
	}

	for _, token := range tokens {
		state := "enabled"
		if !token.Enabled {
			state = "disabled"
		}
		_, _ = fmt.Fprintf(writer, "%s  %s  %s  registered %s\n",
			token.ID, token.Name, state, token.CreatedAt.Format(time.RFC3339))
	}

	return nil
}

// outputTokenText outputs a token in human-readable text format.
func outputTokenText(token *tokenDomain.Token, writer io.Writer) {
	_, _ = fmt.Fprintf(writer, "ID: %s\n", token.ID)
	_, _ = fmt.Fprintf(writer, "Name: %s\n", token.Name)
	_, _ = fmt.Fprintf(writer, "Enabled: %t\n", token.Enabled)
	_, _ = fmt.Fprintf(writer, "Registered: %s\n", token.CreatedAt.Format(time.RFC3339))
}

// outputTokenJSON outputs a token in JSON format for machine consumption.
func outputTokenJSON(token *tokenDomain.Token, writer io.Writer) {
	writeJSON(tokenMap(token), writer)
}

func tokenMap(token *tokenDomain.Token) map[string]any {
	return map[string]any{
		"id":         token.ID,
		"name":       token.Name,
		"enabled":    token.Enabled,
		"created_at": token.CreatedAt.Format(time.RFC3339),
	}
}

// writeJSON marshals a value with indentation and writes it to the writer.
func writeJSON(value any, writer io.Writer) {
	jsonBytes, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	_, _ = fmt.Fprintln(writer, string(jsonBytes))
}
