package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel 日志级别
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Logger 自定义日志器
type Logger struct {
	zapLogger *zap.Logger
}

// LogConfig 由 config 包实现
type LogConfig interface {
	GetLevel() string
	GetOutput() string
	GetFile() string
	GetRotation() Rotation
}

// Rotation 日志文件轮转参数，零值使用默认
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (r Rotation) withDefaults() Rotation {
	if r.MaxSizeMB <= 0 {
		r.MaxSizeMB = 100
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = 3
	}
	if r.MaxAgeDays <= 0 {
		r.MaxAgeDays = 28
	}
	return r
}

var defaultLogger *Logger

func init() {
	var err error
	defaultLogger, err = New(INFO)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
}

// Init 按配置创建日志器并设为默认
func Init(cfg LogConfig) error {
	level := ParseLogLevel(cfg.GetLevel())

	var (
		l   *Logger
		err error
	)
	switch strings.ToLower(cfg.GetOutput()) {
	case "", "stdout":
		l, err = NewWithWriter(level, zapcore.Lock(os.Stdout))
	case "stderr":
		l, err = NewWithWriter(level, zapcore.Lock(os.Stderr))
	case "file":
		if cfg.GetFile() == "" {
			return fmt.Errorf("log output is file but log.file is empty")
		}
		l, err = NewWithFileRotation(level, cfg.GetFile(), cfg.GetRotation())
	default:
		return fmt.Errorf("unknown log output %q", cfg.GetOutput())
	}
	if err != nil {
		return err
	}
	SetDefaultLogger(l)
	return nil
}

// New 创建输出到标准输出的日志器
func New(level LogLevel) (*Logger, error) {
	return NewWithWriter(level, zapcore.Lock(os.Stdout))
}

// NewWithWriter 输出到指定 writer
func NewWithWriter(level LogLevel, ws zapcore.WriteSyncer) (*Logger, error) {
	encoderConfig := newEncoderConfig(level)
	var encoder zapcore.Encoder
	if level == DEBUG {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}
	core := zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(zapLevelFromLogLevel(level)))
	return &Logger{zapLogger: zap.New(core, zap.AddCallerSkip(2), zap.AddCaller())}, nil
}

// NewWithFileRotation 写入文件并按大小轮转，旧文件压缩保存
func NewWithFileRotation(level LogLevel, logFile string, rotation Rotation) (*Logger, error) {
	rotation = rotation.withDefaults()
	ws := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    rotation.MaxSizeMB,
		MaxBackups: rotation.MaxBackups,
		MaxAge:     rotation.MaxAgeDays,
		Compress:   true,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(newEncoderConfig(level)), ws, zap.NewAtomicLevelAt(zapLevelFromLogLevel(level)))
	return &Logger{zapLogger: zap.New(core, zap.AddCallerSkip(2), zap.AddCaller())}, nil
}

// NewNop 丢弃所有输出
func NewNop() *Logger {
	return &Logger{zapLogger: zap.NewNop()}
}

func newEncoderConfig(level LogLevel) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	if level == DEBUG {
		cfg = zap.NewDevelopmentEncoderConfig()
	}
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05"))
	}
	cfg.CallerKey = "caller"
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	cfg.LevelKey = "level"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.MessageKey = "message"
	cfg.EncodeName = zapcore.FullNameEncoder
	return cfg
}

// Debug 调试日志
func (l *Logger) Debug(format string, args ...interface{}) {
	l.zapLogger.Debug(fmt.Sprintf(format, args...))
}

// Info 信息日志
func (l *Logger) Info(format string, args ...interface{}) {
	l.zapLogger.Info(fmt.Sprintf(format, args...))
}

// Warn 警告日志
func (l *Logger) Warn(format string, args ...interface{}) {
	l.zapLogger.Warn(fmt.Sprintf(format, args...))
}

// Error 错误日志
func (l *Logger) Error(format string, args ...interface{}) {
	l.zapLogger.Error(fmt.Sprintf(format, args...))
}

// Fatal 致命错误日志
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.zapLogger.Fatal(fmt.Sprintf(format, args...))
}

// Sync 同步日志
func (l *Logger) Sync() {
	_ = l.zapLogger.Sync()
}

// With 添加字段
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zapLogger: l.zapLogger.With(fields...)}
}

// SetDefaultLogger 设置默认日志器
func SetDefaultLogger(l *Logger) {
	if defaultLogger != nil {
		defaultLogger.Sync()
	}
	defaultLogger = l
}

func Debug(format string, args ...interface{}) {
	defaultLogger.Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	defaultLogger.Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	defaultLogger.Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	defaultLogger.Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	defaultLogger.Fatal(format, args...)
}

func Sync() {
	defaultLogger.Sync()
}

func With(fields ...zap.Field) *Logger {
	return defaultLogger.With(fields...)
}

// Alert 需要人工介入的错误，带 alert=true 字段供日志告警匹配
func Alert(format string, fields []zap.Field, args ...interface{}) {
	defaultLogger.With(append(fields, zap.Bool("alert", true))...).Error(format, args...)
}

// ParseLogLevel 解析日志级别字符串
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

// zapLevelFromLogLevel 转换日志级别
func zapLevelFromLogLevel(level LogLevel) zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
