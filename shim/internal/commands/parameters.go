package commands

type Argument string

const (
	TimeoutArgument Argument = "--timeout"
	VersionArgument Argument = "--version"
)

func (a Argument) String() string {
	return string(a)
}

func StateArgumentValue(enable bool) string {
	if !enable {
		return "off"
	}

	return "on"
}
