package config

import (
	"reflect"

	"github.com/spf13/viper"
)

// setDefaultsFromStruct walks a defaults struct via reflection and calls
// v.SetDefault for every leaf field, using its mapstructure tag (falling
// back to the Go field name) to build the dotted viper key. This lets
// LoadClientConfig/LoadServerConfig express "defaults" as a plain struct
// literal instead of a parallel map of string keys to keep in sync by hand.
func setDefaultsFromStruct(v *viper.Viper, prefix string, s interface{}) {
	val := reflect.ValueOf(s)
	typ := val.Type()

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			tag = field.Name
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			setDefaultsFromStruct(v, key, fv.Interface())
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}
