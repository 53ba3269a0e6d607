package overlay

// Built-in layer names.
const (
	LayerPreferWheels       = "prefer-wheels"
	LayerPreferSdist        = "prefer-sdist"
	LayerDefaultBuildSystem = "default-build-system"
	LayerEditableProject    = "editable-project"
)

// DefaultBuildRequires is given to source distributions that declare no
// build system.
var DefaultBuildRequires = []string{"setuptools", "wheel"}

// BuiltinLayers returns the layers every catalog starts with.
func BuiltinLayers() []Layer {
	return []Layer{
		{
			Name:        LayerPreferWheels,
			Description: "install binary wheels where the lock offers one",
			Targets: func(pkg Package) bool {
				return pkg.Format != FormatEditable && pkg.HasWheel
			},
			Rewrite: func(_ PackageSet, pkg Package) Package {
				pkg.Format = FormatWheel
				return pkg
			},
		},
		{
			Name:        LayerPreferSdist,
			Description: "build from source distributions where the lock offers one",
			Targets: func(pkg Package) bool {
				return pkg.Format != FormatEditable && pkg.HasSdist
			},
			Rewrite: func(_ PackageSet, pkg Package) Package {
				pkg.Format = FormatSdist
				return pkg
			},
		},
		{
			Name:        LayerDefaultBuildSystem,
			Description: "give buildable packages without a build system setuptools and wheel",
			Targets: func(pkg Package) bool {
				return (pkg.HasSdist || pkg.Format == FormatSdist) && len(pkg.BuildSystem) == 0
			},
			Rewrite: func(_ PackageSet, pkg Package) Package {
				pkg.BuildSystem = mergeUnion(pkg.BuildSystem, DefaultBuildRequires)
				return pkg
			},
		},
		{
			Name:        LayerEditableProject,
			Description: "install the workspace project itself in editable mode",
			Targets:     Package.IsWorkspaceMember,
			Rewrite: func(_ PackageSet, pkg Package) Package {
				pkg.Format = FormatEditable
				return pkg
			},
		},
	}
}

// SourcePreferenceName returns the layer name for a wheel/sdist preference.
func SourcePreferenceName(preferWheels bool) string {
	if preferWheels {
		return LayerPreferWheels
	}
	return LayerPreferSdist
}
