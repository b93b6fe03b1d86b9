// Package validation validates configuration structs with struct tags using
// go-playground/validator.
//
//	type AppSpec struct {
//	    Name      string `mapstructure:"name" validate:"required,appname"`
//	    Instances int    `mapstructure:"instances" validate:"min=1,max=64"`
//	}
//	err := validation.Validate(spec)
//
// Field names in messages follow the mapstructure tag, so errors read the same
// way as the YAML the operator wrote. Failures are returned as INVALID_INPUT
// AppErrors whose details list every failing field.
package validation
