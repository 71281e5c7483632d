package plugins

import (
	"context"
	"time"

	"github.com/fivetwenty-io/svc-client/pkg/svc"
)

// Logging logs each call and its outcome through the client's logger.
func Logging() svc.Plugin {
	return &svc.PluginSpec{
		PluginName: NameLogging,
		Handlers: []svc.HandlerSpec{{
			Step:     svc.StepValidate,
			Name:     HandlerLogging,
			Handler:  svc.HandlerFunc(logCall),
			Position: svc.Front,
		}},
	}
}

func logCall(ctx context.Context, rc *svc.RequestContext, next svc.Next) error {
	start := time.Now()

	rc.Logger.Debug("API Request", map[string]interface{}{
		"service":   rc.ServiceID(),
		"operation": rc.OperationName(),
	})

	err := next(ctx, rc)
	if err == nil {
		err = rc.Error
	}

	fields := map[string]interface{}{
		"service":     rc.ServiceID(),
		"operation":   rc.OperationName(),
		"attempts":    rc.Attempt,
		"retries":     rc.RetryCount,
		"duration_ms": time.Since(start).Milliseconds(),
	}

	if rc.HTTPResponse != nil {
		fields["status_code"] = rc.HTTPResponse.StatusCode
		if id := rc.HTTPResponse.RequestID(); id != "" {
			fields["request_id"] = id
		}
	}

	if err != nil {
		fields["error"] = err.Error()
		fields["classification"] = svc.ClassificationOf(err).String()
		rc.Logger.Error("API Response Error", fields)

		return err
	}

	rc.Logger.Debug("API Response", fields)

	return nil
}
