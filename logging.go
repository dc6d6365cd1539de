// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fabric

import "github.com/joeycumines/logiface"

// Logger is the structured logger accepted by [Builder.Logger].
//
// Any logiface backend can be used through (*logiface.Logger[E]).Logger(),
// for example stumpy:
//
//	l := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr))).Logger()
//	r := fabric.Build[Event](fabric.New(8).Logger(l))
//
// A nil *Logger discards everything; the hot path never logs above trace.
type Logger = logiface.Logger[logiface.Event]

// fatal logs msg with one integer field at error level and panics with it.
// Configuration and lifecycle misuse have no recovery path.
func fatal(l *Logger, msg, key string, value int) {
	l.Err().Int(key, value).Log(msg)
	panic("fabric: " + msg)
}
