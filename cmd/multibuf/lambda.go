package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cuelang.org/go/cue"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/epithet-ssh/multibuf/pkg/config"
	"github.com/epithet-ssh/multibuf/pkg/packserver"
)

// LambdaCLI runs the packing service behind API Gateway. Configuration
// may be supplied as a YAML or JSON document in an SSM parameter; it is
// unified with any local config files.
type LambdaCLI struct {
	ConfigParameter string `help:"SSM parameter holding YAML/JSON config" env:"CONFIG_PARAMETER_NAME" name:"config-parameter"`
}

// SSMAPI is the subset of the SSM client used to fetch configuration.
type SSMAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

func (l *LambdaCLI) Run(logger *slog.Logger, unified cue.Value) error {
	ctx := context.Background()

	if l.ConfigParameter != "" {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		unified, err = loadParameterConfig(ctx, ssm.NewFromConfig(cfg), l.ConfigParameter, unified)
		if err != nil {
			return err
		}
		logger.Info("loaded config parameter", "name", l.ConfigParameter)
	}

	serve, err := loadServeSettings(unified, "", 0, "", "")
	if err != nil {
		return err
	}
	unpack, err := loadUnpackSettings(unified, false, 0, "")
	if err != nil {
		return err
	}

	handler := packserver.New(packserver.Config{
		Logger:       logger,
		MaxBodyBytes: serve.MaxBodyBytes,
		Strict:       unpack.Strict,
		MaxBuffers:   unpack.MaxBuffers,
	})

	logger.Info("starting lambda handler")
	lambda.Start(packserver.LambdaHandler(handler, logger))
	return nil
}

// loadParameterConfig fetches a config document from SSM Parameter Store
// and unifies it with base.
func loadParameterConfig(ctx context.Context, client SSMAPI, name string, base cue.Value) (cue.Value, error) {
	out, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to get parameter %s: %w", name, err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return cue.Value{}, fmt.Errorf("parameter %s has no value", name)
	}

	val, err := config.UnifyReader(base, strings.NewReader(*out.Parameter.Value))
	if err != nil {
		return cue.Value{}, fmt.Errorf("failed to load parameter %s: %w", name, err)
	}
	return val, nil
}
