package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/joseph-ayodele/envelope-ocr/internal/app"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core"
	"github.com/joseph-ayodele/envelope-ocr/internal/server"
)

type handler struct {
	proc *core.Processor
}

func (h handler) handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	ctx = common.WithRequestID(ctx, req.RequestContext.RequestID)
	inv := server.InvocationFromHeaders(req.Headers, []byte(req.Body), req.IsBase64Encoded, "lambda")
	res := h.proc.Process(ctx, inv)

	headers := map[string]string{"Content-Type": "text/plain; charset=utf-8"}
	if res.ReportKey != "" {
		headers["X-Report-Key"] = res.ReportKey
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.StatusCode,
		Headers:    headers,
		Body:       res.Message,
	}, nil
}

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	// one container handles one event at a time, so the processor is used directly
	a, err := app.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	lambda.Start(handler{proc: a.Processor}.handle)
}
