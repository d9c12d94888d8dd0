package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Recovery はハンドラのパニックを回復するGinミドルウェアを返す。
// 応答前のパニックはリクエストIDを含む500エラーとして返す。
// ダウンロードのストリーム中など応答を書き始めた後は、本文を壊さないよう中断のみ行う。
// http.ErrAbortHandlerはnet/httpによる接続の中断に任せるため再度パニックさせる。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			if err, ok := r.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(r)
			}

			requestID := GetRequestID(c)
			log.Printf("[PANIC] request_id=%s %s %s written=%t: %v",
				requestID, c.Request.Method, c.Request.URL.Path, c.Writer.Written(), r)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":      "ゲートウェイ内部でエラーが発生しました",
				"request_id": requestID,
			})
		}()
		c.Next()
	}
}
