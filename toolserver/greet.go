package toolserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ggoodman/mcp-gate/auth"
)

// GreetArgs are the arguments of the greet tool.
type GreetArgs struct {
	Name string `json:"name" jsonschema:"required,description=Who to greet"`
}

// Greet returns a tool that greets by name and logs the caller's verified
// claims.
func Greet(log *slog.Logger) StaticTool {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return NewTool("greet", func(ctx context.Context, args GreetArgs) (*CallToolResult, error) {
		attrs := []any{slog.String("name", args.Name)}
		if claims, ok := auth.ClaimsFromContext(ctx); ok {
			attrs = append(attrs, slog.Any("payload", claims.Raw))
		}
		log.InfoContext(ctx, "greet.call", attrs...)
		return Text(fmt.Sprintf("Hello, %s!", args.Name)), nil
	}, WithToolDescription("Greets the caller by name."))
}
