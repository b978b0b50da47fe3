package tracing

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// TracingIngress opens a server span per request, continuing the caller's
// trace when the headers carry one. Spans are named by the route pattern,
// not the raw path, to keep operation cardinality bounded; the raw URI
// goes into the http.url tag instead.
func TracingIngress() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		tracer := opentracing.GlobalTracer()
		spanCtx, _ := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(ctx.Request.Header))

		operation := ctx.FullPath()
		if operation == "" { // unmatched route
			operation = ctx.Request.URL.Path
		}
		serverSpan := tracer.StartSpan(ctx.Request.Method+" "+operation, ext.RPCServerOption(spanCtx))
		ext.HTTPMethod.Set(serverSpan, ctx.Request.Method)
		ext.HTTPUrl.Set(serverSpan, ctx.Request.RequestURI)

		ctx.Request = ctx.Request.WithContext(opentracing.ContextWithSpan(ctx.Request.Context(), serverSpan))

		ctx.Next()

		ext.HTTPStatusCode.Set(serverSpan, uint16(ctx.Writer.Status()))
		if ctx.Writer.Status() >= http.StatusInternalServerError {
			ext.Error.Set(serverSpan, true)
		}
		serverSpan.Finish()
	}
}
